package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/videotube/internal/models"
)

type OrphanRepo struct {
	DB DBTX
}

const addOrphan = `-- name: AddOrphan
INSERT INTO orphan_objects (object_id, last_error)
VALUES ($1, $2)
ON CONFLICT (object_id) DO UPDATE SET last_error = EXCLUDED.last_error
`

func (r *OrphanRepo) Add(ctx context.Context, objectID string, reason string) error {
	_, err := r.DB.Exec(ctx, addOrphan, objectID, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const claimDueOrphans = `-- name: ClaimDueOrphans
UPDATE orphan_objects SET next_attempt_at = $2
WHERE object_id IN (
	SELECT object_id FROM orphan_objects
	WHERE next_attempt_at <= $1
	ORDER BY next_attempt_at
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING object_id, attempts, last_error, created_at, next_attempt_at
`

func (r *OrphanRepo) ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time, limit int) ([]models.Orphan, error) {
	rows, _ := r.DB.Query(ctx, claimDueOrphans, now, leaseUntil, limit)
	orphans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Orphan, error) {
		var o models.Orphan
		err := row.Scan(&o.ObjectID, &o.Attempts, &o.LastError, &o.CreatedAt, &o.NextAttemptAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return orphans, nil
}

const postponeOrphan = `-- name: PostponeOrphan
UPDATE orphan_objects
SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
WHERE object_id = $1
`

func (r *OrphanRepo) Postpone(ctx context.Context, objectID string, next time.Time, reason string) error {
	_, err := r.DB.Exec(ctx, postponeOrphan, objectID, next, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const removeOrphan = `-- name: RemoveOrphan
DELETE FROM orphan_objects WHERE object_id = $1
`

func (r *OrphanRepo) Remove(ctx context.Context, objectID string) error {
	_, err := r.DB.Exec(ctx, removeOrphan, objectID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
