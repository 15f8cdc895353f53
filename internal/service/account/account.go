// Package account handles email confirmation and password reset.
// Both flows use one-time tokens delivered by email: the plain token goes to the mailer,
// only its sha256 digest is stored.
package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/repository"
	"github.com/nkiryanov/habitus/internal/service/auth/hasher"
)

const (
	defaultConfirmationTTL = 24 * time.Hour
	defaultResetTTL        = time.Hour
	tokenBytes             = 32
)

type Mailer interface {
	SendEmailConfirmation(ctx context.Context, to string, token string) error
	SendPasswordReset(ctx context.Context, to string, token string) error
}

type Config struct {
	// Token lifetimes, defaults are used if not set
	ConfirmationTTL time.Duration
	ResetTTL        time.Duration

	Logger logger.Logger
}

type Service struct {
	storage repository.Storage
	hasher  hasher.PasswordHasher
	mailer  Mailer
	logger  logger.Logger

	confirmationTTL time.Duration
	resetTTL        time.Duration
}

func NewService(cfg Config, storage repository.Storage, h hasher.PasswordHasher, mailer Mailer) *Service {
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = defaultConfirmationTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if h == nil {
		h = hasher.DefaultHasher
	}

	return &Service{
		storage:         storage,
		hasher:          h,
		mailer:          mailer,
		logger:          cfg.Logger,
		confirmationTTL: cfg.ConfirmationTTL,
		resetTTL:        cfg.ResetTTL,
	}
}

// Issue a new confirmation token and mail it, earlier tokens stop working
// Fails with apperrors.ErrEmailAlreadyConfirmed if there is nothing to confirm
func (s *Service) SendEmailConfirmation(ctx context.Context, userID uuid.UUID) error {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsEmailConfirmed {
		return apperrors.ErrEmailAlreadyConfirmed
	}

	token, err := s.issue(ctx, user.ID, models.PurposeEmailConfirmation, s.confirmationTTL)
	if err != nil {
		return err
	}

	if err := s.mailer.SendEmailConfirmation(ctx, user.Email, token); err != nil {
		return fmt.Errorf("can't send confirmation email. Err: %w", err)
	}
	return nil
}

// Mark email of the token owner confirmed, returns the owner id
// Fails with apperrors.ErrUserTokenInvalid for unknown, used or expired token
func (s *Service) ConfirmEmail(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		t, err := tx.UserToken().Consume(ctx, hashToken(token), models.PurposeEmailConfirmation, time.Now())
		if err != nil {
			return err
		}
		userID = t.UserID

		return tx.User().SetEmailConfirmed(ctx, t.UserID)
	})

	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return uuid.Nil, fmt.Errorf("token owner is gone: %w", apperrors.ErrUserTokenInvalid)
	default:
		return uuid.Nil, fmt.Errorf("can't confirm email. Err: %w", err)
	}
}

// Mail a password reset token
// Unknown and disabled accounts are silently skipped to keep registered emails private
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, models.NormalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.logger.Debug("password reset requested for unknown email")
		return nil
	case err != nil:
		return err
	case !user.IsActive:
		s.logger.Debug("password reset requested for disabled user", "user_id", user.ID)
		return nil
	}

	token, err := s.issue(ctx, user.ID, models.PurposePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("can't send password reset email. Err: %w", err)
	}
	return nil
}

// Set a new password by reset token and close every session of the user
// Returns the user id. Fails with apperrors.ErrUserTokenInvalid for unknown, used or expired token
func (s *Service) ResetPassword(ctx context.Context, token string, newPassword string, clientIP string) (uuid.UUID, error) {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return uuid.Nil, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	var userID uuid.UUID
	now := time.Now()

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		t, err := tx.UserToken().Consume(ctx, hashToken(token), models.PurposePasswordReset, now)
		if err != nil {
			return err
		}

		user, err := tx.User().GetUserByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fmt.Errorf("token owner is disabled: %w", apperrors.ErrUserTokenInvalid)
		}
		userID = user.ID

		if err := tx.User().SetPasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		_, err = tx.Refresh().RevokeAllForUser(ctx, user.ID, clientIP, now)
		return err
	})

	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return uuid.Nil, fmt.Errorf("token owner is gone: %w", apperrors.ErrUserTokenInvalid)
	default:
		return uuid.Nil, fmt.Errorf("can't reset password. Err: %w", err)
	}
}

// Store digest of a fresh token, pending tokens with the same purpose are invalidated
func (s *Service) issue(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("can't generate token. Err: %w", err)
	}
	token := hex.EncodeToString(b)
	now := time.Now()

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		if _, err := tx.UserToken().Invalidate(ctx, userID, purpose, now); err != nil {
			return err
		}
		return tx.UserToken().Create(ctx, models.UserToken{
			ID:        uuid.New(),
			UserID:    userID,
			Purpose:   purpose,
			TokenHash: hashToken(token),
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		})
	})
	if err != nil {
		return "", fmt.Errorf("can't save %s token. Err: %w", purpose, err)
	}

	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
