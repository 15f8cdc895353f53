package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/repository"
)

const (
	defaultAccessTokenTTL  = time.Hour
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	refreshTokenBytes      = 32
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID   `json:"uid"`
	Role   models.Role `json:"role"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access token
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		storage:    storage,
	}, nil
}

// Issue access token and persist new refresh token for the user
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User, clientIP string) (models.TokenPair, error) {
	now := time.Now().Truncate(time.Second)

	refresh, err := m.newRefreshToken(user.ID, clientIP, now)
	if err != nil {
		return models.TokenPair{}, err
	}

	if _, err = m.storage.Refresh().Save(ctx, refresh); err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return m.pair(user, refresh, now)
}

// Exchange active refresh token for a new pair
// The old token is revoked and points to its successor. Both changes happen in one transaction
//
// Returned error wraps:
//   - apperrors.ErrRefreshTokenNotFound if token is unknown
//   - apperrors.ErrRefreshTokenInactive if token is revoked, expired or lost a concurrent rotation
//   - apperrors.ErrRefreshTokenReused (together with ErrRefreshTokenInactive) if token was rotated already
func (m *TokenManager) Rotate(ctx context.Context, refresh string, clientIP string) (models.TokenPair, models.RefreshToken, error) {
	var pair models.TokenPair
	var old models.RefreshToken
	now := time.Now().Truncate(time.Second)

	err := m.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		old, err = tx.Refresh().Get(ctx, refresh)
		if err != nil {
			return err
		}

		switch {
		case old.IsRotated():
			return fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenInactive, apperrors.ErrRefreshTokenReused)
		case !old.IsActive(time.Now()):
			return apperrors.ErrRefreshTokenInactive
		}

		user, err := tx.User().GetUserByID(ctx, old.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return fmt.Errorf("token owner is gone: %w", apperrors.ErrRefreshTokenInactive)
		case err != nil:
			return err
		case !user.IsActive:
			return fmt.Errorf("token owner is disabled: %w", apperrors.ErrRefreshTokenInactive)
		}

		next, err := m.newRefreshToken(user.ID, clientIP, now)
		if err != nil {
			return err
		}

		if _, err := tx.Refresh().Rotate(ctx, old.Token, next.Token, clientIP, time.Now()); err != nil {
			return err
		}
		if _, err := tx.Refresh().Save(ctx, next); err != nil {
			return fmt.Errorf("error while saving refresh token. Err: %w", err)
		}

		pair, err = m.pair(user, next, now)
		return err
	})
	if err != nil {
		return pair, old, fmt.Errorf("error while rotating refresh token. Err: %w", err)
	}

	return pair, old, nil
}

// Revoke refresh token owned by the user
// Revoking already revoked token is not an error
// Token of another user is reported as apperrors.ErrRefreshTokenNotFound and left untouched
func (m *TokenManager) Revoke(ctx context.Context, refresh string, owner uuid.UUID, clientIP string) (models.RefreshToken, error) {
	var token models.RefreshToken

	err := m.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, err := tx.Refresh().Get(ctx, refresh)
		if err != nil {
			return err
		}
		if stored.UserID != owner {
			return apperrors.ErrRefreshTokenNotFound
		}

		token, err = tx.Refresh().Revoke(ctx, refresh, clientIP, time.Now())
		return err
	})
	if err != nil {
		return token, fmt.Errorf("error while revoking refresh token. Err: %w", err)
	}
	return token, nil
}

// Revoke every active refresh token of the user
func (m *TokenManager) RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) (int64, error) {
	n, err := m.storage.Refresh().RevokeAllForUser(ctx, userID, clientIP, time.Now())
	if err != nil {
		return 0, fmt.Errorf("error while revoking user tokens. Err: %w", err)
	}
	return n, nil
}

// Parse and validate access token
// Stateless: signature and expiry are checked only
func (m *TokenManager) ParseAccess(access string) (models.AccessClaims, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
	if claims.UserID == uuid.Nil {
		return models.AccessClaims{}, fmt.Errorf("%w: user id is missing", apperrors.ErrInvalidToken)
	}

	return models.AccessClaims{
		UserID:    claims.UserID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *TokenManager) pair(user models.User, refresh models.RefreshToken, now time.Time) (models.TokenPair, error) {
	var pair models.TokenPair
	accessExpiresAt := now.Add(m.accessTTL)

	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			UserID: user.ID,
			Role:   user.Role,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh.Token, ExpiresAt: refresh.ExpiresAt},
	}, nil
}

func (m *TokenManager) newRefreshToken(userID uuid.UUID, clientIP string, now time.Time) (models.RefreshToken, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return models.RefreshToken{}, fmt.Errorf("error while generate refresh token. Err: %w", err)
	}

	return models.RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		Token:       hex.EncodeToString(b),
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.refreshTTL),
		CreatedByIP: clientIP,
	}, nil
}
