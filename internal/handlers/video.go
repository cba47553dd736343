package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/video"
)

type videoResponse struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	VideoFile   string    `json:"video_file"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"` // seconds
	Views       int64     `json:"views"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newVideoResponse(v models.Video) videoResponse {
	return videoResponse{
		ID:          v.ID,
		OwnerID:     v.OwnerID,
		VideoFile:   v.VideoFile.URL,
		Thumbnail:   v.Thumbnail.URL,
		Title:       v.Title,
		Description: v.Description,
		Duration:    v.Duration.Seconds(),
		Views:       v.Views,
		IsPublished: v.IsPublished,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

// Whole seconds time.Duration can hold
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))

// Duration in seconds, possibly fractional. Empty value is zero duration
func parseDuration(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, true
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 || seconds > maxDurationSeconds {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// Multipart form: title, description, duration in seconds, videoFile and optional thumbnail
func handlePublishVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cleanup, ok := parseMultipart(w, r)
		defer cleanup()
		if !ok {
			return
		}

		duration, ok := parseDuration(r.FormValue("duration"))
		if !ok {
			render.ServiceError(w, "Invalid duration", http.StatusBadRequest)
			return
		}

		file, closeFile, err := formFile(r, "videoFile")
		defer closeFile()
		if err != nil {
			render.ServiceError(w, "Invalid video file", http.StatusBadRequest)
			return
		}

		thumbnail, closeThumbnail, err := formFile(r, "thumbnail")
		defer closeThumbnail()
		if err != nil {
			render.ServiceError(w, "Invalid thumbnail file", http.StatusBadRequest)
			return
		}

		v, err := videoService.Publish(r.Context(), acc.ID, video.PublishParams{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Duration:    duration,
			VideoFile:   file,
			Thumbnail:   thumbnail,
		})
		if err != nil {
			renderError(w, r, l, "Failed to publish video", err)
			return
		}

		render.Created(w, newVideoResponse(v))
	})
}

// Unpublished videos are visible to the owner only
func handleGetVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, ok := videoID(w, r)
		if !ok {
			return
		}

		v, err := videoService.Get(r.Context(), id)
		if err != nil {
			renderError(w, r, l, "Failed to get video", err)
			return
		}
		if !v.IsPublished && v.OwnerID != acc.ID {
			render.ServiceError(w, "Video not found", http.StatusNotFound)
			return
		}

		render.JSON(w, newVideoResponse(v))
	})
}

// Multipart form with any of: title, description, thumbnail
func handleUpdateVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, ok := videoID(w, r)
		if !ok {
			return
		}

		cleanup, ok := parseMultipart(w, r)
		defer cleanup()
		if !ok {
			return
		}

		thumbnail, closeThumbnail, err := formFile(r, "thumbnail")
		defer closeThumbnail()
		if err != nil {
			render.ServiceError(w, "Invalid thumbnail file", http.StatusBadRequest)
			return
		}

		v, err := videoService.Update(r.Context(), acc.ID, id, video.UpdateParams{
			Title:       formValue(r, "title"),
			Description: formValue(r, "description"),
			Thumbnail:   thumbnail,
		})
		if err != nil {
			renderError(w, r, l, "Failed to update video", err)
			return
		}

		render.JSON(w, newVideoResponse(v))
	})
}

func handleTogglePublish(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, ok := videoID(w, r)
		if !ok {
			return
		}

		v, err := videoService.TogglePublish(r.Context(), acc.ID, id)
		if err != nil {
			renderError(w, r, l, "Failed to toggle publish status", err)
			return
		}

		render.JSON(w, newVideoResponse(v))
	})
}

// Record deletion is reported as success even if some stored objects were retained
func handleDeleteVideo(videoService videoService, l logger.Logger) http.Handler {
	type response struct {
		Message         string   `json:"message"`
		RetainedObjects []string `json:"retained_objects,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, ok := videoID(w, r)
		if !ok {
			return
		}

		result, err := videoService.Delete(r.Context(), acc.ID, id)
		if err != nil {
			if result.ObjectErr != nil {
				logger.FromContext(r.Context(), l).Error("video objects not deleted", "video_id", id, "retained", retainedIDs(result), "error", result.ObjectErr)
			}
			renderError(w, r, l, "Failed to delete video", err)
			return
		}

		res := response{Message: "Video deleted successfully"}
		if result.Partial() {
			res.Message = "Video deleted, some files could not be removed"
			res.RetainedObjects = retainedIDs(result)
		}

		render.JSON(w, res)
	})
}

func retainedIDs(result video.DeleteResult) []string {
	ids := make([]string, 0, len(result.RetainedObjects))
	for _, obj := range result.RetainedObjects {
		ids = append(ids, obj.ID)
	}
	return ids
}
