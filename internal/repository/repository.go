package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create account
	// If account with the same username or email exists has to return apperrors.ErrAccountAlreadyExists
	Create(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by its id, or by username or email
	// If account not found must return apperrors.ErrAccountNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (models.Account, error)

	// Report whether any account already uses username or email
	ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error)

	// Update only not nil fields and return updated account
	// If account not found must return apperrors.ErrAccountNotFound
	// If new email is taken must return apperrors.ErrAccountAlreadyExists
	UpdateFields(ctx context.Context, id uuid.UUID, update models.AccountUpdate) (models.Account, error)

	// Same as UpdateFields, but also returns account as it was right before the update
	// Row is locked while updating, so concurrent callers never see the same previous state
	SwapFields(ctx context.Context, id uuid.UUID, update models.AccountUpdate) (updated models.Account, previous models.Account, err error)

	// Write all mutable fields of the account
	Save(ctx context.Context, account models.Account) (models.Account, error)

	// Overwrite persisted refresh token in one statement, empty token clears it
	// If account not found must return apperrors.ErrAccountNotFound
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
}

// Video repository interface
type VideoRepo interface {
	Create(ctx context.Context, video models.Video) (models.Video, error)

	// If video not found must return apperrors.ErrVideoNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Video, error)

	// Same as GetByID, but locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (models.Video, error)

	UpdateFields(ctx context.Context, id uuid.UUID, update models.VideoUpdate) (models.Video, error)
	TogglePublished(ctx context.Context, id uuid.UUID) (models.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Stored objects that are left without a record and wait for deletion
type OrphanRepo interface {
	// Remember object, known object keeps its attempts
	Add(ctx context.Context, objectID string, reason string) error

	// Take orphans with next attempt time before now, oldest attempt first
	// Taken orphans are not due again until leaseUntil, so one object is never swept twice at once
	ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time, limit int) ([]models.Orphan, error)

	// Count failed attempt and schedule the next one
	Postpone(ctx context.Context, objectID string, next time.Time, reason string) error

	Remove(ctx context.Context, objectID string) error
}

type Storage interface {
	Account() AccountRepo
	Video() VideoRepo
	Orphan() OrphanRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
