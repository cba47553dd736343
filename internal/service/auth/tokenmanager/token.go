package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind     Kind   `json:"typ"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Fullname string `json:"fullname,omitempty"`
}

// Persists the latest refresh token of the account
type RefreshStore interface {
	SetRefreshToken(ctx context.Context, accountID uuid.UUID, token string) error
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Required to be set and must differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time

	store RefreshStore
}

func New(cfg Config, store RefreshStore) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("secret keys must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		store:      store,
	}, nil
}

// Issue short living access token with account identity
func (m *TokenManager) IssueAccess(account models.Account) (models.IssuedToken, error) {
	claims := m.newClaims(KindAccess, account.ID, m.accessTTL)
	claims.Username = account.Username
	claims.Email = account.Email
	claims.Fullname = account.Fullname

	return m.sign(claims, m.accessKey)
}

// Issue long living refresh token that carries account id only
func (m *TokenManager) IssueRefresh(accountID uuid.UUID) (models.IssuedToken, error) {
	return m.sign(m.newClaims(KindRefresh, accountID, m.refreshTTL), m.refreshKey)
}

// Parse and validate token of the kind
// Any failure is reported as apperrors.ErrTokenInvalid
func (m *TokenManager) Verify(token string, kind Kind) (models.Claims, error) {
	key := m.accessKey
	if kind == KindRefresh {
		key = m.refreshKey
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	if claims.Kind != kind {
		return models.Claims{}, fmt.Errorf("%w: expected %s token, got %q", apperrors.ErrTokenInvalid, kind, claims.Kind)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: bad subject: %w", apperrors.ErrTokenInvalid, err)
	}

	return models.Claims{
		TokenID:   claims.ID,
		AccountID: accountID,
		Username:  claims.Username,
		Email:     claims.Email,
		Fullname:  claims.Fullname,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Issue new token pair and overwrite persisted refresh token
// Nothing is returned and persisted token left untouched on failure
func (m *TokenManager) Rotate(ctx context.Context, account models.Account) (models.TokenPair, error) {
	fail := func(err error) (models.TokenPair, error) {
		return models.TokenPair{}, apperrors.Internal(
			"Token generation failed",
			fmt.Errorf("%w: %w", apperrors.ErrTokenGenerationFailed, err),
		)
	}

	access, err := m.IssueAccess(account)
	if err != nil {
		return fail(err)
	}

	refresh, err := m.IssueRefresh(account.ID)
	if err != nil {
		return fail(err)
	}

	if err := m.store.SetRefreshToken(ctx, account.ID, refresh.Value); err != nil {
		return fail(err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) newClaims(kind Kind, accountID uuid.UUID, ttl time.Duration) tokenClaims {
	now := m.now().Truncate(time.Second)

	return tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
}

func (m *TokenManager) sign(claims tokenClaims, key []byte) (models.IssuedToken, error) {
	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", claims.Kind, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: claims.ExpiresAt.Time}, nil
}
