package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `id, created_at, updated_at, username, email, fullname,
avatar_id, avatar_url, cover_image_id, cover_image_url, password_hash, refresh_token`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, username, email, fullname, avatar_id, avatar_url, cover_image_id, cover_image_url, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + accountColumns

func (r *AccountRepo) Create(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAccount,
		a.ID, a.Username, a.Email, a.Fullname,
		a.Avatar.ID, a.Avatar.URL, a.CoverImage.ID, a.CoverImage.URL,
		a.PasswordHash,
	)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case isUniqueViolation(err):
		return account, apperrors.ErrAccountAlreadyExists
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByID = `-- name: GetAccountByID
SELECT ` + accountColumns + ` FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	return collectAccount(rows)
}

const getAccountByUsernameOrEmail = `-- name: GetAccountByUsernameOrEmail
SELECT ` + accountColumns + ` FROM accounts
WHERE username = $1 OR email = $1
LIMIT 1
`

func (r *AccountRepo) GetByUsernameOrEmail(ctx context.Context, identifier string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByUsernameOrEmail, identifier)
	return collectAccount(rows)
}

const existsByUsernameOrEmail = `-- name: ExistsByUsernameOrEmail
SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1 OR email = $2)
`

func (r *AccountRepo) ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error) {
	rows, _ := r.DB.Query(ctx, existsByUsernameOrEmail, username, email)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const updateAccountFields = `-- name: UpdateAccountFields
UPDATE accounts SET
	fullname = COALESCE($2::text, fullname),
	email = COALESCE($3::text, email),
	avatar_id = COALESCE($4::text, avatar_id),
	avatar_url = COALESCE($5::text, avatar_url),
	cover_image_id = COALESCE($6::text, cover_image_id),
	cover_image_url = COALESCE($7::text, cover_image_url),
	password_hash = COALESCE($8::text, password_hash),
	updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) UpdateFields(ctx context.Context, id uuid.UUID, u models.AccountUpdate) (models.Account, error) {
	avatarID, avatarURL := mediaArgs(u.Avatar)
	coverID, coverURL := mediaArgs(u.CoverImage)

	rows, _ := r.DB.Query(ctx, updateAccountFields,
		id, u.Fullname, u.Email,
		avatarID, avatarURL, coverID, coverURL,
		u.PasswordHash,
	)
	account, err := collectAccount(rows)
	if isUniqueViolation(err) {
		return account, apperrors.ErrAccountAlreadyExists
	}
	return account, err
}

const lockAccountByID = `-- name: LockAccountByID
SELECT ` + accountColumns + ` FROM accounts
WHERE id = $1
FOR UPDATE
`

func (r *AccountRepo) SwapFields(ctx context.Context, id uuid.UUID, u models.AccountUpdate) (updated models.Account, previous models.Account, err error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return updated, previous, fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("db error: %w", err)
		}
	}()

	rows, _ := tx.Query(ctx, lockAccountByID, id)
	previous, err = collectAccount(rows)
	if err != nil {
		return updated, previous, err
	}

	updated, err = (&AccountRepo{DB: tx}).UpdateFields(ctx, id, u)
	return updated, previous, err
}

const saveAccount = `-- name: SaveAccount
UPDATE accounts SET
	username = $2,
	email = $3,
	fullname = $4,
	avatar_id = $5,
	avatar_url = $6,
	cover_image_id = $7,
	cover_image_url = $8,
	password_hash = $9,
	refresh_token = NULLIF($10, ''),
	updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) Save(ctx context.Context, a models.Account) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, saveAccount,
		a.ID, a.Username, a.Email, a.Fullname,
		a.Avatar.ID, a.Avatar.URL, a.CoverImage.ID, a.CoverImage.URL,
		a.PasswordHash, a.RefreshToken,
	)
	account, err := collectAccount(rows)
	if isUniqueViolation(err) {
		return account, apperrors.ErrAccountAlreadyExists
	}
	return account, err
}

const setRefreshToken = `-- name: SetRefreshToken
UPDATE accounts SET refresh_token = NULLIF($2, ''), updated_at = now()
WHERE id = $1
`

func (r *AccountRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.DB.Exec(ctx, setRefreshToken, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	var refresh *string
	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Username, &a.Email, &a.Fullname,
		&a.Avatar.ID, &a.Avatar.URL, &a.CoverImage.ID, &a.CoverImage.URL,
		&a.PasswordHash, &refresh,
	)
	if refresh != nil {
		a.RefreshToken = *refresh
	}
	return a, err
}

func mediaArgs(o *models.MediaObject) (id *string, url *string) {
	if o == nil {
		return nil, nil
	}
	return &o.ID, &o.URL
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
