package sweeper

import (
	"context"
	"errors"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

type objectStore interface {
	Upload(ctx context.Context, u models.Upload) (models.MediaObject, error)
	Delete(ctx context.Context, objectID string) error
}

type orphanRecorder interface {
	Add(ctx context.Context, objectID string, reason string) error
}

// Object store that records objects it failed to delete, so the sweeper picks them up later
type TrackingStore struct {
	objectStore
	orphans orphanRecorder
	logger  logger.Logger
}

func NewTrackingStore(store objectStore, orphans orphanRecorder, logger logger.Logger) *TrackingStore {
	return &TrackingStore{objectStore: store, orphans: orphans, logger: logger}
}

func (s *TrackingStore) Delete(ctx context.Context, objectID string) error {
	err := s.objectStore.Delete(ctx, objectID)
	if err == nil || errors.Is(err, apperrors.ErrObjectNotFound) {
		return err
	}

	if rerr := s.orphans.Add(ctx, objectID, err.Error()); rerr != nil {
		s.logger.Error("Failed to record orphan object", "error", rerr, "object_id", objectID)
	} else {
		s.logger.Info("Orphan object recorded", "object_id", objectID)
	}

	return err
}
