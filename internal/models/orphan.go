package models

import (
	"time"
)

// Stored object no record points to, that failed to be deleted
type Orphan struct {
	ObjectID      string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}
