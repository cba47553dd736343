package account

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/service/auth"
	"github.com/nkiryanov/videotube/internal/service/media"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type RegisterParams struct {
	Username string `validate:"required"`
	Email    string `validate:"required"`
	Fullname string `validate:"required"`
	Password string `validate:"required"`

	Avatar     *models.Upload `validate:"required"`
	CoverImage *models.Upload
}

type Service struct {
	accounts repository.AccountRepo
	store    media.ObjectStore
	hasher   auth.PasswordHasher
	log      logger.Logger
}

func NewService(accounts repository.AccountRepo, store media.ObjectStore, hasher auth.PasswordHasher, log logger.Logger) *Service {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &Service{
		accounts: accounts,
		store:    store,
		hasher:   hasher,
		log:      log,
	}
}

// Register account with required avatar and optional cover image
// Uploaded objects are deleted if account was not persisted
func (s *Service) Register(ctx context.Context, p RegisterParams) (models.Profile, error) {
	p.Username = strings.ToLower(strings.TrimSpace(p.Username))
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Fullname = strings.TrimSpace(p.Fullname)

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Avatar" {
			return models.Profile{}, apperrors.InvalidInput("Avatar file is missing", err)
		}
		return models.Profile{}, apperrors.InvalidInput("All fields are required", err)
	}

	exists, err := s.accounts.ExistsByUsernameOrEmail(ctx, p.Username, p.Email)
	if err != nil {
		return models.Profile{}, apperrors.Internal("Internal server error", err)
	}
	if exists {
		return models.Profile{}, apperrors.InvalidInput("User with the same username or email already exists", nil)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return models.Profile{}, apperrors.InvalidInput("Can't use this as password", err)
	}

	batch := media.NewBatch(s.store, s.log)

	avatar, err := batch.Upload(ctx, "avatar", *p.Avatar)
	if err != nil {
		return models.Profile{}, err
	}

	var cover models.MediaObject
	if p.CoverImage != nil {
		cover, err = batch.Upload(ctx, "cover image", *p.CoverImage)
		if err != nil {
			return models.Profile{}, batch.Abort(ctx, "Failed to upload cover image, account was not created", err)
		}
	}

	account, err := s.accounts.Create(ctx, models.Account{
		Username:     p.Username,
		Email:        p.Email,
		Fullname:     p.Fullname,
		Avatar:       avatar,
		CoverImage:   cover,
		PasswordHash: hash,
	})
	if err != nil {
		return models.Profile{}, batch.Abort(ctx, "Something went wrong while registering the user", err)
	}

	s.log.Info("account registered", "account_id", account.ID)
	return account.Profile(), nil
}

func (s *Service) Profile(ctx context.Context, accountID uuid.UUID) (models.Profile, error) {
	account, err := s.get(ctx, accountID)
	if err != nil {
		return models.Profile{}, err
	}
	return account.Profile(), nil
}

func (s *Service) UpdateDetails(ctx context.Context, accountID uuid.UUID, fullname string, email string) (models.Profile, error) {
	fullname = strings.TrimSpace(fullname)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullname == "" || email == "" {
		return models.Profile{}, apperrors.InvalidInput("All fields are required", nil)
	}

	account, err := s.accounts.UpdateFields(ctx, accountID, models.AccountUpdate{Fullname: &fullname, Email: &email})
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.Profile{}, apperrors.NotFound("User does not exist", err)
	case errors.Is(err, apperrors.ErrAccountAlreadyExists):
		return models.Profile{}, apperrors.InvalidInput("Email is already taken", err)
	case err != nil:
		return models.Profile{}, apperrors.Internal("Internal server error", err)
	}

	return account.Profile(), nil
}

func (s *Service) UpdateAvatar(ctx context.Context, accountID uuid.UUID, u models.Upload) (models.Profile, error) {
	return s.replaceMedia(ctx, accountID, "avatar", u,
		func(a models.Account) models.MediaObject { return a.Avatar },
		func(obj *models.MediaObject) models.AccountUpdate { return models.AccountUpdate{Avatar: obj} },
	)
}

func (s *Service) UpdateCoverImage(ctx context.Context, accountID uuid.UUID, u models.Upload) (models.Profile, error) {
	return s.replaceMedia(ctx, accountID, "cover image", u,
		func(a models.Account) models.MediaObject { return a.CoverImage },
		func(obj *models.MediaObject) models.AccountUpdate { return models.AccountUpdate{CoverImage: obj} },
	)
}

// Upload new object, point account to it and delete the replaced one
func (s *Service) replaceMedia(
	ctx context.Context,
	accountID uuid.UUID,
	field string,
	u models.Upload,
	current func(models.Account) models.MediaObject,
	update func(*models.MediaObject) models.AccountUpdate,
) (models.Profile, error) {
	if _, err := s.get(ctx, accountID); err != nil {
		return models.Profile{}, err
	}

	batch := media.NewBatch(s.store, s.log)

	obj, err := batch.Upload(ctx, field, u)
	if err != nil {
		return models.Profile{}, err
	}

	// Object replaced is taken from the locked row, not from the read above:
	// a concurrent replacement could have happened in between
	updated, previous, err := s.accounts.SwapFields(ctx, accountID, update(&obj))
	if err != nil {
		return models.Profile{}, apperrors.Internal("Failed to update "+field, errors.Join(err, batch.Rollback(ctx)))
	}

	media.Discard(ctx, s.store, s.log, current(previous))

	return updated.Profile(), nil
}

func (s *Service) get(ctx context.Context, accountID uuid.UUID) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return account, apperrors.NotFound("User does not exist", err)
	case err != nil:
		return account, apperrors.Internal("Internal server error", err)
	}
	return account, nil
}
