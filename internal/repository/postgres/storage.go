package postgres

import (
	"context"
	"fmt"

	"github.com/nkiryanov/videotube/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Account() repository.AccountRepo {
	return &AccountRepo{DB: s.db}
}

func (s *Storage) Video() repository.VideoRepo {
	return &VideoRepo{DB: s.db}
}

func (s *Storage) Orphan() repository.OrphanRepo {
	return &OrphanRepo{DB: s.db}
}

// Run fn in transaction
// Nested calls (when db is pgx.Tx already) use savepoints, pgx does it for us
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
