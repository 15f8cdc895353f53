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

type UserTokenRepo struct {
	DB DBTX
}

const createUserToken = `-- name: CreateUserToken
INSERT INTO user_tokens (id, user_id, purpose, token_hash, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (r *UserTokenRepo) Create(ctx context.Context, t models.UserToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := r.DB.Exec(ctx, createUserToken, t.ID, t.UserID, t.Purpose, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const invalidateUserTokens = `-- name: InvalidateUserTokens
UPDATE user_tokens
SET used_at = $3
WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL
`

func (r *UserTokenRepo) Invalidate(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, invalidateUserTokens, userID, purpose, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Single statement, so two concurrent consumers can't both win
const consumeUserToken = `-- name: ConsumeUserToken
UPDATE user_tokens
SET used_at = $3
WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
RETURNING id, user_id, purpose, token_hash, created_at, expires_at, used_at
`

func (r *UserTokenRepo) Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (models.UserToken, error) {
	rows, _ := r.DB.Query(ctx, consumeUserToken, tokenHash, purpose, now)
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.UserToken, error) {
		var t models.UserToken
		err := row.Scan(&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
		return t, err
	})

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrUserTokenInvalid
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}
