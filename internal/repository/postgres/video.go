package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type VideoRepo struct {
	DB DBTX
}

const videoColumns = `id, owner_id, video_file_id, video_file_url, thumbnail_id, thumbnail_url,
title, description, duration_ms, views, is_published, created_at, updated_at`

const createVideo = `-- name: CreateVideo
INSERT INTO videos (id, owner_id, video_file_id, video_file_url, thumbnail_id, thumbnail_url, title, description, duration_ms, is_published)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + videoColumns

func (r *VideoRepo) Create(ctx context.Context, v models.Video) (models.Video, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createVideo,
		v.ID, v.OwnerID,
		v.VideoFile.ID, v.VideoFile.URL, v.Thumbnail.ID, v.Thumbnail.URL,
		v.Title, v.Description, v.Duration.Milliseconds(), v.IsPublished,
	)
	video, err := pgx.CollectOneRow(rows, rowToVideo)
	if err != nil {
		return video, fmt.Errorf("db error: %w", err)
	}
	return video, nil
}

const getVideoByID = `-- name: GetVideoByID
SELECT ` + videoColumns + ` FROM videos
WHERE id = $1
`

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, getVideoByID, id)
	return collectVideo(rows)
}

const lockVideoByID = `-- name: LockVideoByID
SELECT ` + videoColumns + ` FROM videos
WHERE id = $1
FOR UPDATE
`

func (r *VideoRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, lockVideoByID, id)
	return collectVideo(rows)
}

const updateVideoFields = `-- name: UpdateVideoFields
UPDATE videos SET
	title = COALESCE($2::text, title),
	description = COALESCE($3::text, description),
	thumbnail_id = COALESCE($4::text, thumbnail_id),
	thumbnail_url = COALESCE($5::text, thumbnail_url),
	updated_at = now()
WHERE id = $1
RETURNING ` + videoColumns

func (r *VideoRepo) UpdateFields(ctx context.Context, id uuid.UUID, u models.VideoUpdate) (models.Video, error) {
	thumbnailID, thumbnailURL := mediaArgs(u.Thumbnail)

	rows, _ := r.DB.Query(ctx, updateVideoFields, id, u.Title, u.Description, thumbnailID, thumbnailURL)
	return collectVideo(rows)
}

const toggleVideoPublished = `-- name: ToggleVideoPublished
UPDATE videos SET is_published = NOT is_published, updated_at = now()
WHERE id = $1
RETURNING ` + videoColumns

func (r *VideoRepo) TogglePublished(ctx context.Context, id uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, toggleVideoPublished, id)
	return collectVideo(rows)
}

const deleteVideo = `-- name: DeleteVideo
DELETE FROM videos WHERE id = $1
`

func (r *VideoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteVideo, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrVideoNotFound
	}
	return nil
}

func collectVideo(rows pgx.Rows) (models.Video, error) {
	video, err := pgx.CollectOneRow(rows, rowToVideo)

	switch {
	case err == nil:
		return video, nil
	case errors.Is(err, pgx.ErrNoRows):
		return video, apperrors.ErrVideoNotFound
	default:
		return video, fmt.Errorf("db error: %w", err)
	}
}

func rowToVideo(row pgx.CollectableRow) (models.Video, error) {
	var v models.Video
	var durationMS int64
	err := row.Scan(
		&v.ID, &v.OwnerID,
		&v.VideoFile.ID, &v.VideoFile.URL, &v.Thumbnail.ID, &v.Thumbnail.URL,
		&v.Title, &v.Description, &durationMS, &v.Views, &v.IsPublished,
		&v.CreatedAt, &v.UpdatedAt,
	)
	v.Duration = time.Duration(durationMS) * time.Millisecond
	return v, err
}
