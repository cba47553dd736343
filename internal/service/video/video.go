package video

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/service/media"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type PublishParams struct {
	Title       string `validate:"required"`
	Description string
	Duration    time.Duration `validate:"gte=0"`

	VideoFile *models.Upload `validate:"required"`
	Thumbnail *models.Upload
}

// Nil fields are left untouched
type UpdateParams struct {
	Title       *string
	Description *string
	Thumbnail   *models.Upload
}

// Outcome of video deletion
// Record and stored objects are removed independently, so deletion may succeed partially
type DeleteResult struct {
	RecordDeleted bool

	// Objects left in the store and the reason
	RetainedObjects []models.MediaObject
	ObjectErr       error
}

func (r DeleteResult) Partial() bool {
	return r.RecordDeleted && len(r.RetainedObjects) > 0
}

type Service struct {
	storage repository.Storage
	store   media.ObjectStore
	log     logger.Logger
}

func NewService(storage repository.Storage, store media.ObjectStore, log logger.Logger) *Service {
	return &Service{storage: storage, store: store, log: log}
}

// Publish video with required video file and optional thumbnail
// Uploaded objects are deleted if video was not persisted
func (s *Service) Publish(ctx context.Context, ownerID uuid.UUID, p PublishParams) (models.Video, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)

	if err := validate.Struct(p); err != nil {
		return models.Video{}, apperrors.InvalidInput(publishInputMessage(err), err)
	}

	batch := media.NewBatch(s.store, s.log)

	file, err := batch.Upload(ctx, "video file", *p.VideoFile)
	if err != nil {
		return models.Video{}, err
	}

	var thumbnail models.MediaObject
	if p.Thumbnail != nil {
		thumbnail, err = batch.Upload(ctx, "thumbnail", *p.Thumbnail)
		if err != nil {
			return models.Video{}, batch.Abort(ctx, "Failed to upload thumbnail, video was not created", err)
		}
	}

	video, err := s.storage.Video().Create(ctx, models.Video{
		OwnerID:     ownerID,
		VideoFile:   file,
		Thumbnail:   thumbnail,
		Title:       p.Title,
		Description: p.Description,
		Duration:    p.Duration,
		IsPublished: true,
	})
	if err != nil {
		return models.Video{}, batch.Abort(ctx, "Failed to create video", err)
	}

	s.log.Info("video published", "video_id", video.ID, "owner_id", ownerID)
	return video, nil
}

func publishInputMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid video"
	}

	switch verrs[0].Field() {
	case "VideoFile":
		return "Video file is missing"
	case "Duration":
		return "Invalid duration"
	default:
		return "Title is required"
	}
}

func (s *Service) Get(ctx context.Context, videoID uuid.UUID) (models.Video, error) {
	video, err := s.storage.Video().GetByID(ctx, videoID)
	if err != nil {
		return video, tagRepoError(err)
	}
	return video, nil
}

// Update descriptive fields and thumbnail of owned video
func (s *Service) Update(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID, p UpdateParams) (models.Video, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return models.Video{}, apperrors.InvalidInput("Title is required", nil)
		}
		p.Title = &title
	}
	if p.Title == nil && p.Description == nil && p.Thumbnail == nil {
		return models.Video{}, apperrors.InvalidInput("Nothing to update", nil)
	}

	if _, err := owned(ctx, s.storage.Video(), ownerID, videoID); err != nil {
		return models.Video{}, err
	}

	batch := media.NewBatch(s.store, s.log)
	update := models.VideoUpdate{Title: p.Title, Description: p.Description}

	if p.Thumbnail != nil {
		thumbnail, err := batch.Upload(ctx, "thumbnail", *p.Thumbnail)
		if err != nil {
			return models.Video{}, err
		}
		update.Thumbnail = &thumbnail
	}

	// Replaced thumbnail is read from the locked row, concurrent updates see each other's thumbnails
	var updated, previous models.Video
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		previous, err = ownedForUpdate(ctx, tx.Video(), ownerID, videoID)
		if err != nil {
			return err
		}

		updated, err = tx.Video().UpdateFields(ctx, videoID, update)
		if err != nil {
			return tagRepoError(err)
		}
		return nil
	})
	if err != nil {
		rollbackErr := batch.Rollback(ctx)
		if apperrors.KindOf(err) == apperrors.ErrNotFound {
			return models.Video{}, err
		}
		return models.Video{}, apperrors.Internal("Failed to update video", errors.Join(err, rollbackErr))
	}

	if update.Thumbnail != nil {
		media.Discard(ctx, s.store, s.log, previous.Thumbnail)
	}

	return updated, nil
}

func (s *Service) TogglePublish(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error) {
	var video models.Video
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		if _, err := owned(ctx, tx.Video(), ownerID, videoID); err != nil {
			return err
		}

		var err error
		video, err = tx.Video().TogglePublished(ctx, videoID)
		if err != nil {
			return tagRepoError(err)
		}
		return nil
	})
	if err != nil {
		return models.Video{}, tagged(err)
	}
	return video, nil
}

// Delete stored objects, then the record
// Record is deleted even if some objects were not, result tells which ones are retained
// After ownership is checked deletion does not depend on ctx cancellation
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (DeleteResult, error) {
	video, err := owned(ctx, s.storage.Video(), ownerID, videoID)
	if err != nil {
		return DeleteResult{}, err
	}

	// Once objects start to disappear the record has to follow, whatever the caller does
	ctx, cancel := media.Detach(ctx)
	defer cancel()

	var result DeleteResult
	result.RetainedObjects, result.ObjectErr = media.Delete(ctx, s.store, video.Objects()...)

	if err := s.storage.Video().Delete(ctx, videoID); err != nil {
		return result, tagRepoError(err)
	}
	result.RecordDeleted = true

	for _, obj := range result.RetainedObjects {
		s.log.Warn("video deleted but object retained", "video_id", videoID, "object_id", obj.ID, "error", result.ObjectErr)
	}

	return result, nil
}

// Load video and make sure it belongs to the owner
// Foreign videos are reported as not found
func owned(ctx context.Context, repo repository.VideoRepo, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error) {
	video, err := repo.GetByID(ctx, videoID)
	return ownedBy(ownerID, video, err)
}

// Same as owned, but the row stays locked until the transaction ends
func ownedForUpdate(ctx context.Context, repo repository.VideoRepo, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error) {
	video, err := repo.GetByIDForUpdate(ctx, videoID)
	return ownedBy(ownerID, video, err)
}

func ownedBy(ownerID uuid.UUID, video models.Video, err error) (models.Video, error) {
	if err != nil {
		return video, tagRepoError(err)
	}
	if video.OwnerID != ownerID {
		return models.Video{}, apperrors.NotFound("Video not found", nil)
	}
	return video, nil
}

func tagRepoError(err error) error {
	if errors.Is(err, apperrors.ErrVideoNotFound) {
		return apperrors.NotFound("Video not found", err)
	}
	return apperrors.Internal("Internal server error", err)
}

// Errors returned from a transaction could be untagged commit failures
func tagged(err error) error {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return err
	}
	return apperrors.Internal("Internal server error", err)
}
