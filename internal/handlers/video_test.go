package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/video"
)

type deleteVideoFunc func(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (video.DeleteResult, error)

// Video service where only Delete is usable
type deletingVideoService struct {
	videoService
	delete deleteVideoFunc
}

func (s deletingVideoService) Delete(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (video.DeleteResult, error) {
	return s.delete(ctx, ownerID, videoID)
}

type errorRecord struct {
	msg  string
	args []any
}

// Logger keeping error records only
type errorLogger struct {
	logger.Logger

	mu      sync.Mutex
	records []errorRecord
}

func (l *errorLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, errorRecord{msg: msg, args: args})
}

func (l *errorLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, 0, len(l.records))
	for _, r := range l.records {
		msgs = append(msgs, r.msg)
	}
	return msgs
}

func TestHandleDeleteVideo(t *testing.T) {
	owner := models.Account{ID: uuid.New(), Username: "alice"}
	videoID := uuid.New()
	retained := models.MediaObject{ID: "videos/1.mp4", URL: "https://cdn.test/videos/1.mp4"}

	serve := func(t *testing.T, fn deleteVideoFunc) (*httptest.ResponseRecorder, *errorLogger) {
		l := &errorLogger{Logger: logger.NewNoOpLogger()}
		h := handleDeleteVideo(deletingVideoService{delete: fn}, l)

		r := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+videoID.String(), nil)
		r.SetPathValue("videoId", videoID.String())
		r = r.WithContext(userctx.New(r.Context(), owner))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)
		return w, l
	}

	t.Run("partial success lists retained objects", func(t *testing.T) {
		w, l := serve(t, func(_ context.Context, ownerID uuid.UUID, id uuid.UUID) (video.DeleteResult, error) {
			assert.Equal(t, owner.ID, ownerID)
			assert.Equal(t, videoID, id)
			return video.DeleteResult{RecordDeleted: true, RetainedObjects: []models.MediaObject{retained}, ObjectErr: errors.New("forbidden")}, nil
		})

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"message": "Video deleted, some files could not be removed", "retained_objects": ["videos/1.mp4"]}`, w.Body.String())
		require.Empty(t, l.messages())
	})

	t.Run("record delete fail logs retained objects", func(t *testing.T) {
		w, l := serve(t, func(context.Context, uuid.UUID, uuid.UUID) (video.DeleteResult, error) {
			result := video.DeleteResult{RetainedObjects: []models.MediaObject{retained}, ObjectErr: errors.New("forbidden")}
			return result, apperrors.Internal("Internal server error", errors.New("db is down"))
		})

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, []string{"video objects not deleted", "Failed to delete video"}, l.messages())

		l.mu.Lock()
		defer l.mu.Unlock()
		require.Contains(t, l.records[0].args, []string{"videos/1.mp4"})
	})

	t.Run("record delete fail without object errors", func(t *testing.T) {
		w, l := serve(t, func(context.Context, uuid.UUID, uuid.UUID) (video.DeleteResult, error) {
			return video.DeleteResult{}, apperrors.Internal("Internal server error", errors.New("db is down"))
		})

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, []string{"Failed to delete video"}, l.messages())
	})
}
