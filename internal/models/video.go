package models

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	VideoFile   MediaObject
	Thumbnail   MediaObject // zero if not set
	Title       string
	Description string
	Duration    time.Duration
	Views       int64
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Objects referenced by the video in deletion order
func (v Video) Objects() []MediaObject {
	objects := make([]MediaObject, 0, 2)
	for _, o := range []MediaObject{v.VideoFile, v.Thumbnail} {
		if !o.IsZero() {
			objects = append(objects, o)
		}
	}
	return objects
}

// Partial update of video fields, nil fields are left untouched
type VideoUpdate struct {
	Title       *string
	Description *string
	Thumbnail   *MediaObject
}
