package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Used when caller does not provide its own hasher
var DefaultHasher PasswordHasher = BcryptHasher{}

type TokenManager interface {
	// Issue new pair and persist refresh token of the account
	Rotate(ctx context.Context, account models.Account) (models.TokenPair, error)

	// Has to return apperrors.ErrTokenInvalid on any verification failure
	Verify(token string, kind tokenmanager.Kind) (models.Claims, error)
}

// Auth service
type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	tokens TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	accounts repository.AccountRepo
}

func NewService(hasher PasswordHasher, tokens TokenManager, accounts repository.AccountRepo) (*AuthService, error) {
	if tokens == nil || accounts == nil {
		return nil, errors.New("token manager and account repo must not be nil")
	}

	if hasher == nil {
		hasher = DefaultHasher
	}

	return &AuthService{
		tokens:   tokens,
		hasher:   hasher,
		accounts: accounts,
	}, nil
}

// Login with username or email
// On success previous refresh token of the account stops working
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (models.Profile, models.TokenPair, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return models.Profile{}, models.TokenPair{}, apperrors.InvalidInput("Username or email and password are required", nil)
	}

	account, err := s.accounts.GetByUsernameOrEmail(ctx, identifier)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.Profile{}, models.TokenPair{}, apperrors.NotFound("User does not exist", err)
	case err != nil:
		return models.Profile{}, models.TokenPair{}, apperrors.Internal("Internal server error", err)
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return models.Profile{}, models.TokenPair{}, apperrors.Unauthorized("Invalid user credentials", nil)
	}

	pair, err := s.tokens.Rotate(ctx, account)
	if err != nil {
		return models.Profile{}, models.TokenPair{}, err
	}

	return account.Profile(), pair, nil
}

// Forget persisted refresh token, so every issued refresh token is revoked
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID) error {
	err := s.accounts.SetRefreshToken(ctx, accountID, "")
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return apperrors.Unauthorized("Unauthorized request", err)
	case err != nil:
		return apperrors.Internal("Internal server error", err)
	}
	return nil
}

// Exchange refresh token for a new pair
// Every rejection is reported as the same Unauthorized error
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	unauthorized := apperrors.Unauthorized("Invalid refresh token", nil)

	if refresh == "" {
		return models.TokenPair{}, unauthorized
	}

	claims, err := s.tokens.Verify(refresh, tokenmanager.KindRefresh)
	if err != nil {
		return models.TokenPair{}, unauthorized
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.TokenPair{}, unauthorized
	case err != nil:
		return models.TokenPair{}, apperrors.Internal("Internal server error", err)
	}

	if account.RefreshToken == "" || account.RefreshToken != refresh {
		return models.TokenPair{}, unauthorized
	}

	return s.tokens.Rotate(ctx, account)
}

// Replace password hash, issued tokens remain valid
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword string, newPassword string) error {
	if newPassword == "" {
		return apperrors.InvalidInput("New password is required", nil)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return apperrors.NotFound("User does not exist", err)
	case err != nil:
		return apperrors.Internal("Internal server error", err)
	}

	if err := s.hasher.Compare(account.PasswordHash, oldPassword); err != nil {
		return apperrors.Unauthorized("Invalid old password", nil)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.InvalidInput("Can't use this as password", err)
	}

	_, err = s.accounts.UpdateFields(ctx, accountID, models.AccountUpdate{PasswordHash: &hash})
	if err != nil {
		return apperrors.Internal("Internal server error", fmt.Errorf("update password: %w", err))
	}

	return nil
}

// Resolve access token into the account it was issued for
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.Account, error) {
	claims, err := s.tokens.Verify(access, tokenmanager.KindAccess)
	if err != nil {
		return models.Account{}, apperrors.Unauthorized("Unauthorized request", err)
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.Account{}, apperrors.Unauthorized("Unauthorized request", err)
	case err != nil:
		return models.Account{}, apperrors.Internal("Internal server error", err)
	}

	return account, nil
}
