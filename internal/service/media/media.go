package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

// Compensating deletions get own deadline, detached from the caller one
const rollbackTimeout = 30 * time.Second

// External binary store
type ObjectStore interface {
	Upload(ctx context.Context, u models.Upload) (models.MediaObject, error)
	Delete(ctx context.Context, id string) error
}

// Detach returns context that outlives caller cancellation but has own deadline
// Used for work that must finish once started: compensation and deletion of records with their objects
func Detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
}

// Batch uploads objects one by one and remembers them,
// so they could be deleted if the record referencing them was not persisted
type Batch struct {
	store    ObjectStore
	log      logger.Logger
	uploaded []models.MediaObject
}

func NewBatch(store ObjectStore, log logger.Logger) *Batch {
	return &Batch{store: store, log: log}
}

// Upload file and remember the object
// Failure is returned as apperrors.ErrUploadFailed and nothing is remembered
func (b *Batch) Upload(ctx context.Context, field string, u models.Upload) (models.MediaObject, error) {
	obj, err := b.store.Upload(ctx, u)
	if err != nil {
		return models.MediaObject{}, apperrors.UploadFailed(fmt.Sprintf("Failed to upload %s", field), err)
	}

	b.uploaded = append(b.uploaded, obj)
	return obj, nil
}

// Objects uploaded so far in upload order
func (b *Batch) Uploaded() []models.MediaObject {
	return append([]models.MediaObject(nil), b.uploaded...)
}

// Delete every uploaded object, latest first
// Runs even if ctx is already canceled. Failures are logged and returned joined
func (b *Batch) Rollback(ctx context.Context) error {
	if len(b.uploaded) == 0 {
		return nil
	}

	ctx, cancel := Detach(ctx)
	defer cancel()

	objects := make([]models.MediaObject, 0, len(b.uploaded))
	for i := len(b.uploaded) - 1; i >= 0; i-- {
		objects = append(objects, b.uploaded[i])
	}
	b.uploaded = nil

	retained, err := Delete(ctx, b.store, objects...)
	for _, obj := range retained {
		b.log.Error("uploaded object left orphaned", "object_id", obj.ID)
	}
	return err
}

// Abort rolls batch back and tags cause as apperrors.ErrCreationFailed
// Rollback failures are attached for diagnostics, cause stays the primary error
func (b *Batch) Abort(ctx context.Context, message string, cause error) error {
	return apperrors.CreationFailed(message, errors.Join(cause, b.Rollback(ctx)))
}

// Delete objects continuing on failures
// Returns objects which are still in the store and joined apperrors.ErrDeleteFailed errors
func Delete(ctx context.Context, store ObjectStore, objects ...models.MediaObject) ([]models.MediaObject, error) {
	var retained []models.MediaObject
	var errs []error

	for _, obj := range objects {
		if obj.IsZero() {
			continue
		}
		if err := store.Delete(ctx, obj.ID); err != nil {
			retained = append(retained, obj)
			errs = append(errs, apperrors.DeleteFailed("Failed to delete media", fmt.Errorf("object %s: %w", obj.ID, err)))
		}
	}

	return retained, errors.Join(errs...)
}

// Best effort deletion of object which is not referenced anymore
// Runs detached from ctx cancellation, failures are only logged
func Discard(ctx context.Context, store ObjectStore, log logger.Logger, obj models.MediaObject) {
	if obj.IsZero() {
		return
	}

	ctx, cancel := Detach(ctx)
	defer cancel()

	if _, err := Delete(ctx, store, obj); err != nil {
		log.Warn("replaced object was not deleted", "object_id", obj.ID, "error", err)
	}
}
