package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Token owner has to exist
	withToken := func(t *testing.T, testFunc func(repo RefreshTokenRepo, token models.RefreshToken)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user, err := (&UserRepo{DB: tx}).CreateUser(t.Context(), newUser("owner@example.com"))
			require.NoError(t, err)

			testFunc(RefreshTokenRepo{DB: tx}, models.RefreshToken{
				ID:          uuid.New(),
				UserID:      user.ID,
				Token:       "secret-token",
				CreatedAt:   mustParseTime("2024-01-01 19:00:01Z"),
				ExpiresAt:   mustParseTime("2200-01-01 03:00:02Z"),
				CreatedByIP: "10.0.0.1",
			})
		})
	}

	t.Run("save token ok", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			got, err := repo.Save(t.Context(), token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.Equal(t, token.Token, got.Token)
			require.Equal(t, "10.0.0.1", got.CreatedByIP)
			require.WithinDuration(t, token.CreatedAt, got.CreatedAt, 0)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, 0)
			require.False(t, got.Revoked)
			require.Nil(t, got.RevokedAt, "RevokedAt should be nil cause original token is not revoked")
			require.Nil(t, got.ReplacedByToken)
		})
	})

	t.Run("save token with same string fail", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			token.ID = uuid.New()
			_, err = repo.Save(t.Context(), token)

			require.Error(t, err, "token string must be unique")
		})
	})

	t.Run("get token ok", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			got, err := repo.Get(t.Context(), token.Token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.True(t, got.IsActive(time.Now()))
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, _ models.RefreshToken) {
			_, err := repo.Get(t.Context(), "not-existed")

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("rotate active token", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)
			now := time.Now()

			got, err := repo.Rotate(t.Context(), token.Token, "next-token", "10.0.0.2", now)

			require.NoError(t, err)
			require.True(t, got.Revoked)
			require.NotNil(t, got.RevokedAt)
			require.WithinDuration(t, now, *got.RevokedAt, time.Millisecond)
			require.Equal(t, "10.0.0.2", *got.RevokedByIP)
			require.Equal(t, "next-token", *got.ReplacedByToken)
			require.True(t, got.IsRotated())
		})
	})

	t.Run("rotate rotated token fail", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)
			_, err = repo.Rotate(t.Context(), token.Token, "next-token", "10.0.0.2", time.Now())
			require.NoError(t, err)

			_, err = repo.Rotate(t.Context(), token.Token, "another-token", "10.0.0.3", time.Now())
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenInactive)

			got, err := repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			require.Equal(t, "next-token", *got.ReplacedByToken, "successor must not be overwritten")
		})
	})

	t.Run("rotate expired token fail", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			token.ExpiresAt = time.Now().Add(-time.Minute)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			_, err = repo.Rotate(t.Context(), token.Token, "next-token", "10.0.0.2", time.Now())

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenInactive)
		})
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			first, err := repo.Revoke(t.Context(), token.Token, "10.0.0.2", time.Now())
			require.NoError(t, err, "No error should happen on revoke")
			second, err := repo.Revoke(t.Context(), token.Token, "10.0.0.3", time.Now().Add(time.Hour))
			require.NoError(t, err, "Revoke of revoked token is not an error")

			assert.True(t, second.Revoked)
			assert.WithinDuration(t, *first.RevokedAt, *second.RevokedAt, 0, "should keep first revocation time")
			assert.Equal(t, "10.0.0.2", *second.RevokedByIP, "should keep first revocation ip")
			assert.Nil(t, second.ReplacedByToken)
		})
	})

	t.Run("revoke not existed token", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, _ models.RefreshToken) {
			_, err := repo.Revoke(t.Context(), "not-existed", "10.0.0.2", time.Now())

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("revoke all tokens of user", func(t *testing.T) {
		withToken(t, func(repo RefreshTokenRepo, token models.RefreshToken) {
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)
			second := token
			second.ID, second.Token = uuid.New(), "second-token"
			_, err = repo.Save(t.Context(), second)
			require.NoError(t, err)
			_, err = repo.Revoke(t.Context(), second.Token, "10.0.0.2", time.Now())
			require.NoError(t, err)

			n, err := repo.RevokeAllForUser(t.Context(), token.UserID, "10.0.0.3", time.Now())

			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "only active token should be revoked")
			got, err := repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			assert.False(t, got.IsActive(time.Now()))
		})
	})
}
