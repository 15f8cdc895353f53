package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/models"
)

// User repository interface
// Soft deleted users are invisible for every method
type UserRepo interface {
	// Create user
	// If active user with the same email exists must return apperrors.ErrEmailAlreadyExists
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Update name, email and profile fields
	// If email belongs to another user must return apperrors.ErrEmailInUse
	UpdateProfile(ctx context.Context, userID uuid.UUID, update models.ProfileUpdate) (models.User, error)

	SetPasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) error
	SetEmailConfirmed(ctx context.Context, userID uuid.UUID) error
	SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error)
	SoftDelete(ctx context.Context, userID uuid.UUID, at time.Time) error

	// Page of users ordered by creation time, newest first, and total number of users
	ListUsers(ctx context.Context, limit int, offset int) ([]models.User, int, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even if it is revoked or expired
	// If the token not exists must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, token string) (models.RefreshToken, error)

	// Revoke token and point it to its successor only if it is still active at 'now'
	// Must return apperrors.ErrRefreshTokenInactive if no active token was updated
	Rotate(ctx context.Context, token string, replacedBy string, ip string, now time.Time) (models.RefreshToken, error)

	// Revoke token
	// Must be idempotent: already revoked token keeps its original revocation data
	// If the token not exists must return apperrors.ErrRefreshTokenNotFound
	Revoke(ctx context.Context, token string, ip string, now time.Time) (models.RefreshToken, error)

	// Revoke every active token of the user, returns number of revoked tokens
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, ip string, now time.Time) (int64, error)
}

// One-time email token repository, tokens are looked up by hash
type UserTokenRepo interface {
	Create(ctx context.Context, token models.UserToken) error

	// Mark pending tokens of the user for the purpose as used, returns number of tokens
	Invalidate(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, now time.Time) (int64, error)

	// Mark the token used if it is still usable at 'now'
	// Unknown, used, expired or other purpose token must return apperrors.ErrUserTokenInvalid
	Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (models.UserToken, error)
}

type AuditRepo interface {
	Create(ctx context.Context, event models.AuditEvent) error

	// Latest events first
	List(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	UserToken() UserTokenRepo
	Audit() AuditRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
