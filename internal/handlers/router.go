package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/handlers/middleware"
	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Options struct {
	// Take client ip from X-Forwarded-For and X-Real-IP headers
	TrustProxy bool
}

func NewRouter(
	opts Options,
	authService authService,
	userService userService,
	accountService accountService,
	auditService auditService,
	limiter loginLimiter,
	metrics metricsService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	adminOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	withAdmin := func(h http.Handler) http.Handler {
		return authMiddleware(adminOnly(h))
	}
	superAdminOnly := middleware.RequireRole(models.RoleSuperAdmin)
	withSuperAdmin := func(h http.Handler) http.Handler {
		return authMiddleware(superAdminOnly(h))
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(userService, accountService, auditService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, limiter, auditService, metrics, logger))
	api.Handle("POST /auth/refresh-token", handleRefreshToken(authService, auditService, logger))
	api.Handle("POST /auth/revoke-token", withAuth(handleRevokeToken(authService, auditService, logger)))
	api.Handle("POST /auth/revoke-all", withAuth(handleRevokeAll(authService, auditService, logger)))
	api.Handle("POST /auth/change-password", withAuth(handleChangePassword(userService, auditService, logger)))
	api.Handle("GET /auth/me", withAuth(handleMe(userService, logger)))
	api.Handle("POST /auth/confirm-email", handleConfirmEmail(accountService, auditService, logger))
	api.Handle("POST /auth/resend-confirmation", withAuth(handleResendConfirmation(accountService, auditService, logger)))
	api.Handle("POST /auth/forgot-password", handleForgotPassword(accountService, auditService, logger))
	api.Handle("POST /auth/reset-password", handleResetPassword(accountService, authService, auditService, logger))

	api.Handle("GET /registration/profile", withAuth(handleGetProfile(userService, logger)))
	api.Handle("PUT /registration/profile", withAuth(handleUpdateProfile(userService, auditService, logger)))
	api.Handle("GET /registration/check-email/{email}", handleCheckEmail(userService, logger))

	api.Handle("GET /admin/users", withAdmin(handleListUsers(userService, logger)))
	api.Handle("GET /admin/users/{id}", withAdmin(handleGetUser(userService, logger)))
	api.Handle("PUT /admin/users/{id}/role", withSuperAdmin(handleSetRole(userService, auditService, logger)))
	api.Handle("PUT /admin/users/{id}/status", withAdmin(handleSetStatus(userService, authService, auditService, logger)))
	api.Handle("DELETE /admin/users/{id}", withSuperAdmin(handleDeleteUser(userService, authService, auditService, logger)))
	api.Handle("GET /admin/audit-logs", withAdmin(handleListAudit(auditService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", metrics.Handler())
	root.Handle("GET /healthz", handleHealth())

	handler := chain(root,
		middleware.ClientMiddleware(opts.TrustProxy),
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(metrics),
	)

	return handler
}

func handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "ok"})
	})
}

type authService interface {
	// Check credentials and issue token pair
	// Has to return apperrors.ErrInvalidCredentials on unknown email, wrong password or disabled user
	Login(ctx context.Context, email string, password string, clientIP string) (models.Session, error)

	// Rotate refresh token
	// If token unknown: has to return apperrors.ErrRefreshTokenNotFound
	// If token revoked or expired: has to return apperrors.ErrRefreshTokenInactive
	// If token was rotated already: has to wrap apperrors.ErrRefreshTokenReused as well
	Refresh(ctx context.Context, refresh string, clientIP string) (models.TokenPair, models.RefreshToken, error)

	// Revoke refresh token of the user, idempotent
	// If token unknown or owned by another user: has to return apperrors.ErrRefreshTokenNotFound
	Revoke(ctx context.Context, refresh string, userID uuid.UUID, clientIP string) error
	RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) error

	// Get request and return access claims if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.AccessClaims, error)

	// Refresh token from body, falls back to cookie
	RefreshFromRequest(r *http.Request, fromBody string) string
	SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken)
	ClearRefreshCookie(w http.ResponseWriter)
}

type userService interface {
	// Has to return apperrors.ErrEmailAlreadyExists if email is taken
	Register(ctx context.Context, p user.RegisterParams) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not found
	GetByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) (bool, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (bool, error)
	IsEmailAvailable(ctx context.Context, email string) (bool, error)

	List(ctx context.Context, page int, pageSize int) (user.Page, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type accountService interface {
	// Has to return apperrors.ErrEmailAlreadyConfirmed if email confirmed already
	SendEmailConfirmation(ctx context.Context, userID uuid.UUID) error

	// Has to return apperrors.ErrUserTokenInvalid on unknown, used or expired token
	ConfirmEmail(ctx context.Context, token string) (uuid.UUID, error)
	ResetPassword(ctx context.Context, token string, newPassword string, clientIP string) (uuid.UUID, error)

	// Has to return nil for unknown email
	ForgotPassword(ctx context.Context, email string) error
}

type auditService interface {
	// Best effort, never fails
	Record(ctx context.Context, event models.AuditEvent)
	List(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

// Failed login counter keyed by client ip
type loginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	RegisterFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type metricsService interface {
	ObserveHTTP(method string, status int, duration time.Duration)
	AuthEvent(event string)
	Handler() http.Handler
}
