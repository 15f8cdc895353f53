package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const tokenColumns = `id, user_id, token, created_at, expires_at, created_by_ip,
revoked, revoked_at, revoked_by_ip, replaced_by_token`

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, created_by_ip, revoked, revoked_at, revoked_by_ip, replaced_by_token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken,
		t.ID, t.UserID, t.Token, t.CreatedAt, t.ExpiresAt, t.CreatedByIP, t.Revoked, t.RevokedAt, t.RevokedByIP, t.ReplacedByToken,
	)
	token, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return token, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

const getToken = `-- name: GetRefreshToken
SELECT ` + tokenColumns + `
FROM refresh_tokens
WHERE token = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

// Concurrent rotations of the same token block on the row lock;
// the loser re-evaluates the predicate after commit and updates nothing
const rotateToken = `-- name: RotateRefreshToken
UPDATE refresh_tokens
SET revoked = true, revoked_at = $3, revoked_by_ip = $4, replaced_by_token = $2
WHERE token = $1 AND NOT revoked AND expires_at > $3
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) Rotate(ctx context.Context, tokenString string, replacedBy string, ip string, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, rotateToken, tokenString, replacedBy, now, ip)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenInactive)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: RevokeRefreshToken
UPDATE refresh_tokens
SET revoked = true, revoked_at = COALESCE(revoked_at, $2), revoked_by_ip = COALESCE(revoked_by_ip, $3)
WHERE token = $1
RETURNING ` + tokenColumns

// Must be idempotent: should not rewrite already revoked tokens
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string, ip string, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, revokeToken, tokenString, now, ip)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeAllForUser = `-- name: RevokeAllRefreshTokensForUser
UPDATE refresh_tokens
SET revoked = true, revoked_at = $2, revoked_by_ip = $3
WHERE user_id = $1 AND NOT revoked
`

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, ip string, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeAllForUser, userID, now, ip)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.CreatedByIP,
		&t.Revoked, &t.RevokedAt, &t.RevokedByIP, &t.ReplacedByToken,
	)
	return t, err
}
