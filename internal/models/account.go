package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Username     string
	Email        string
	Fullname     string
	Avatar       MediaObject
	CoverImage   MediaObject // zero if not set
	PasswordHash string
	RefreshToken string // empty if there is no active session
}

// Account projection without credentials
type Profile struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Username   string
	Email      string
	Fullname   string
	Avatar     MediaObject
	CoverImage MediaObject
}

func (a Account) Profile() Profile {
	return Profile{
		ID:         a.ID,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		Username:   a.Username,
		Email:      a.Email,
		Fullname:   a.Fullname,
		Avatar:     a.Avatar,
		CoverImage: a.CoverImage,
	}
}

// Partial update of account fields, nil fields are left untouched
type AccountUpdate struct {
	Fullname     *string
	Email        *string
	Avatar       *MediaObject
	CoverImage   *MediaObject
	PasswordHash *string
}
