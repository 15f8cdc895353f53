package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/metrics"
	"github.com/nkiryanov/habitus/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshToken"
)

type tokenManager interface {
	GeneratePair(ctx context.Context, user models.User, clientIP string) (models.TokenPair, error)
	Rotate(ctx context.Context, refresh string, clientIP string) (models.TokenPair, models.RefreshToken, error)
	Revoke(ctx context.Context, refresh string, owner uuid.UUID, clientIP string) (models.RefreshToken, error)
	RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) (int64, error)
	ParseAccess(access string) (models.AccessClaims, error)
}

type userService interface {
	CheckCredentials(ctx context.Context, email string, password string) (models.User, error)
	RecordLogin(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

type eventCounter interface {
	AuthEvent(event string)
}

type Config struct {
	// Header and scheme the access token is expected in
	AccessHeaderName string
	AccessAuthScheme string

	// Cookie the refresh token is stored in
	RefreshCookieName string

	// Allow refresh cookie over plain http, for local development only
	InsecureCookie bool

	Logger  logger.Logger
	Metrics eventCounter
}

// Auth service
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	secureCookie      bool

	tokens  tokenManager
	users   userService
	logger  logger.Logger
	metrics eventCounter
}

func NewService(cfg Config, tokens tokenManager, users userService) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = (*metrics.Metrics)(nil)
	}

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		secureCookie:      !cfg.InsecureCookie,
		tokens:            tokens,
		users:             users,
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
	}, nil
}

// Check credentials and open new session
// Fails with apperrors.ErrInvalidCredentials for unknown email, wrong password or disabled account
func (s *AuthService) Login(ctx context.Context, email string, password string, clientIP string) (models.Session, error) {
	user, err := s.users.CheckCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			s.metrics.AuthEvent(metrics.EventLoginFailed)
		}
		return models.Session{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user, clientIP)
	if err != nil {
		return models.Session{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	// Login counts once the session exists
	at, err := s.users.RecordLogin(ctx, user.ID)
	if err != nil {
		return models.Session{}, err
	}
	user.LastLoginAt = &at

	s.metrics.AuthEvent(metrics.EventLoginSuccess)
	return models.Session{User: user, Tokens: pair}, nil
}

// Exchange refresh token for a new pair
// Returns the presented token record as well (empty if token is unknown)
func (s *AuthService) Refresh(ctx context.Context, refresh string, clientIP string) (models.TokenPair, models.RefreshToken, error) {
	pair, presented, err := s.tokens.Rotate(ctx, refresh, clientIP)

	switch {
	case err == nil:
		s.metrics.AuthEvent(metrics.EventRefreshSuccess)
	case errors.Is(err, apperrors.ErrRefreshTokenReused):
		s.metrics.AuthEvent(metrics.EventRefreshReuse)
		s.logger.Warn("possible refresh token theft: rotated token presented again",
			"user_id", presented.UserID,
			"token_id", presented.ID,
			"client_ip", clientIP,
		)
	default:
		s.metrics.AuthEvent(metrics.EventRefreshFailed)
	}

	return pair, presented, err
}

// Revoke refresh token of the user, idempotent
// Unknown token and token of another user are both apperrors.ErrRefreshTokenNotFound
func (s *AuthService) Revoke(ctx context.Context, refresh string, userID uuid.UUID, clientIP string) error {
	if _, err := s.tokens.Revoke(ctx, refresh, userID, clientIP); err != nil {
		return err
	}

	s.metrics.AuthEvent(metrics.EventRevoke)
	return nil
}

// Revoke every active refresh token of the user (logout everywhere)
func (s *AuthService) RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) error {
	n, err := s.tokens.RevokeAll(ctx, userID, clientIP)
	if err != nil {
		return err
	}

	s.logger.Debug("user refresh tokens revoked", "user_id", userID, "count", n)
	s.metrics.AuthEvent(metrics.EventRevokeAll)
	return nil
}

// Stateless access token check
func (s *AuthService) ValidateAccessToken(access string) (models.AccessClaims, error) {
	return s.tokens.ParseAccess(access)
}

// Authenticate request by access token in its header
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.AccessClaims, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, access, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) || access == "" {
		return models.AccessClaims{}, fmt.Errorf("%w: no %s token in header", apperrors.ErrInvalidToken, s.accessAuthScheme)
	}

	return s.ValidateAccessToken(strings.TrimSpace(access))
}

// Refresh token from request body or, if empty, from the cookie
func (s *AuthService) RefreshFromRequest(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}

	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *AuthService) SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		Expires:  refresh.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
