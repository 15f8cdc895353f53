package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/handlers/userctx"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/metrics"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/service/user"
)

func handleRegister(userService userService, accountService accountService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		FirstName       string `json:"firstName" validate:"required,max=50"`
		LastName        string `json:"lastName" validate:"required,max=50"`
		Email           string `json:"email" validate:"required,email,max=255"`
		Password        string `json:"password" validate:"required,min=8,max=100"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}
	type response struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		User    userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		u, err := userService.Register(r.Context(), user.RegisterParams{
			Email:     data.Email,
			Password:  data.Password,
			FirstName: data.FirstName,
			LastName:  data.LastName,
		})
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrEmailAlreadyExists):
			render.ServiceError(w, "Email already registered", http.StatusBadRequest)
			return
		default:
			l.Error("Failed to register user", "error", err)
			render.InternalError(w)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditRegister, &u.ID, nil)

		// User is registered already, a lost email can be sent again
		if err := accountService.SendEmailConfirmation(r.Context(), u.ID); err != nil {
			l.Error("Failed to send confirmation email", "error", err, "user_id", u.ID)
		} else {
			recordAudit(r.Context(), auditService, models.AuditConfirmationSent, &u.ID, nil)
		}
		render.JSON(w, response{
			Success: true,
			Message: "User registered successfully",
			User:    newUserResponse(u),
		})
	})
}

func handleLogin(authService authService, limiter loginLimiter, auditService auditService, m metricsService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		Success bool `json:"success"`
		tokenResponse
		User userResponse `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		client := userctx.ClientFromContext(ctx)

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		blocked, retryAfter, err := limiter.Blocked(ctx, client.IP)
		if err != nil {
			// Login is still possible when the counter store is down
			l.Error("Failed to check login throttle", "error", err, "client_ip", client.IP)
		}
		if blocked {
			m.AuthEvent(metrics.EventLoginThrottled)
			recordAudit(ctx, auditService, models.AuditLoginThrottled, nil, map[string]any{
				"email":         data.Email,
				"retry_after_s": int64(retryAfter.Seconds()),
			})
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(retryAfter.Seconds())), 10))
			}
			render.ServiceError(w, "Too many failed login attempts, try again later", http.StatusTooManyRequests)
			return
		}

		session, err := authService.Login(ctx, data.Email, data.Password, client.IP)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			if err := limiter.RegisterFailure(ctx, client.IP); err != nil {
				l.Error("Failed to count login failure", "error", err, "client_ip", client.IP)
			}
			recordAudit(ctx, auditService, models.AuditLoginFailed, nil, map[string]any{"email": data.Email})
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		default:
			l.Error("Failed to login", "error", err)
			render.InternalError(w)
			return
		}

		if err := limiter.Reset(ctx, client.IP); err != nil {
			l.Error("Failed to reset login failures", "error", err, "client_ip", client.IP)
		}
		recordAudit(ctx, auditService, models.AuditLoginSuccess, &session.User.ID, nil)

		authService.SetRefreshCookie(w, session.Tokens.Refresh)
		render.JSON(w, response{
			Success:       true,
			tokenResponse: newTokenResponse(session.Tokens),
			User:          newUserResponse(session.User),
		})
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func handleRefreshToken(authService authService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		client := userctx.ClientFromContext(ctx)

		data, err := render.BindOptional[refreshRequest](w, r)
		if err != nil {
			return
		}

		refresh := authService.RefreshFromRequest(r, data.RefreshToken)
		if refresh == "" {
			render.ServiceError(w, "Refresh token is required", http.StatusBadRequest)
			return
		}

		pair, presented, err := authService.Refresh(ctx, refresh, client.IP)
		switch {
		case err == nil:
			recordAudit(ctx, auditService, models.AuditRefreshSuccess, &presented.UserID, nil)
		case errors.Is(err, apperrors.ErrRefreshTokenReused):
			recordAudit(ctx, auditService, models.AuditRefreshReuse, &presented.UserID, map[string]any{
				"token_id": presented.ID.String(),
			})
			authService.ClearRefreshCookie(w)
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound), errors.Is(err, apperrors.ErrRefreshTokenInactive):
			authService.ClearRefreshCookie(w)
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		default:
			l.Error("Failed to refresh token", "error", err)
			render.InternalError(w)
			return
		}

		authService.SetRefreshCookie(w, pair.Refresh)
		render.JSON(w, newTokenResponse(pair))
	})
}

func handleRevokeToken(authService authService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		data, err := render.BindOptional[refreshRequest](w, r)
		if err != nil {
			return
		}

		refresh := authService.RefreshFromRequest(r, data.RefreshToken)
		if refresh == "" {
			render.ServiceError(w, "Refresh token is required", http.StatusBadRequest)
			return
		}

		err = authService.Revoke(ctx, refresh, claims.UserID, userctx.ClientFromContext(ctx).IP)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to revoke token", "error", err)
			render.InternalError(w)
			return
		}

		recordAudit(ctx, auditService, models.AuditLogout, &claims.UserID, nil)
		authService.ClearRefreshCookie(w)
		render.JSON(w, messageResponse{Message: "Token revoked successfully"})
	})
}

func handleRevokeAll(authService authService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		if err := authService.RevokeAll(ctx, claims.UserID, userctx.ClientFromContext(ctx).IP); err != nil {
			l.Error("Failed to revoke user tokens", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
			return
		}

		recordAudit(ctx, auditService, models.AuditLogoutAll, &claims.UserID, nil)
		authService.ClearRefreshCookie(w)
		render.JSON(w, messageResponse{Message: "All sessions revoked successfully"})
	})
}

func handleChangePassword(userService userService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		CurrentPassword    string `json:"currentPassword" validate:"required"`
		NewPassword        string `json:"newPassword" validate:"required,min=8,max=100"`
		ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		changed, err := userService.ChangePassword(r.Context(), claims.UserID, data.CurrentPassword, data.NewPassword)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to change password", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
			return
		}

		if !changed {
			render.ServiceError(w, "Current password is incorrect", http.StatusBadRequest)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditPasswordChanged, &claims.UserID, nil)
		render.JSON(w, messageResponse{Message: "Password changed successfully"})
	})
}

func handleMe(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}

		u, err := userService.GetByID(r.Context(), claims.UserID)
		switch {
		case err == nil:
			render.JSON(w, newUserResponse(u))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get user", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
		}
	})
}
