package models

import (
	"time"

	"github.com/google/uuid"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager on login or refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Identity claims carried by a verified token
type Claims struct {
	TokenID   string
	AccountID uuid.UUID
	Username  string // access token only
	Email     string // access token only
	Fullname  string // access token only
	IssuedAt  time.Time
	ExpiresAt time.Time
}
