package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Token           string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	CreatedByIP     string
	Revoked         bool
	RevokedAt       *time.Time // nil if token not revoked
	RevokedByIP     *string
	ReplacedByToken *string // set when token was rotated
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// Token was exchanged for a successor
func (t RefreshToken) IsRotated() bool {
	return t.Revoked && t.ReplacedByToken != nil
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Data carried by a valid access token
type AccessClaims struct {
	UserID    uuid.UUID
	Role      Role
	ExpiresAt time.Time
}

// Result of a successful login
type Session struct {
	User   User
	Tokens TokenPair
}
