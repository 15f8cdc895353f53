package models

import (
	"time"

	"github.com/google/uuid"
)

// What a one-time email token allows to do
type TokenPurpose string

const (
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// One-time token delivered by email
// Only the hash is stored, the plain value is known to the recipient alone
type UserToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Purpose   TokenPurpose
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

func (t UserToken) IsUsable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
