package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/handlers/userctx"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
)

type tokenRequest struct {
	Token string `json:"token"`
}

func handleConfirmEmail(accountService accountService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindOptional[tokenRequest](w, r)
		if err != nil {
			return
		}

		// Link from the email carries the token in query
		token := data.Token
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			render.ServiceError(w, "Token is required", http.StatusBadRequest)
			return
		}

		userID, err := accountService.ConfirmEmail(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserTokenInvalid):
			render.ServiceError(w, "Invalid or expired token", http.StatusBadRequest)
			return
		default:
			l.Error("Failed to confirm email", "error", err)
			render.InternalError(w)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditEmailConfirmed, &userID, nil)
		render.JSON(w, messageResponse{Message: "Email confirmed successfully"})
	})
}

func handleResendConfirmation(accountService accountService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}

		err := accountService.SendEmailConfirmation(r.Context(), claims.UserID)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrEmailAlreadyConfirmed):
			render.ServiceError(w, "Email is already confirmed", http.StatusBadRequest)
			return
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to send confirmation email", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditConfirmationSent, &claims.UserID, nil)
		render.JSON(w, messageResponse{Message: "Confirmation email sent"})
	})
}

func handleForgotPassword(accountService accountService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email,max=255"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Same answer for every email, failures are only logged
		if err := accountService.ForgotPassword(r.Context(), data.Email); err != nil {
			l.Error("Failed to request password reset", "error", err)
		}

		recordAudit(r.Context(), auditService, models.AuditResetRequested, nil, map[string]any{"email": data.Email})
		render.JSON(w, messageResponse{Message: "If the email exists, a reset link will be sent"})
	})
}

func handleResetPassword(accountService accountService, authService authService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		Token           string `json:"token" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8,max=100"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		userID, err := accountService.ResetPassword(ctx, data.Token, data.NewPassword, userctx.ClientFromContext(ctx).IP)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserTokenInvalid):
			render.ServiceError(w, "Invalid or expired token", http.StatusBadRequest)
			return
		default:
			l.Error("Failed to reset password", "error", err)
			render.InternalError(w)
			return
		}

		recordAudit(ctx, auditService, models.AuditPasswordReset, &userID, nil)
		authService.ClearRefreshCookie(w)
		render.JSON(w, messageResponse{Message: "Password reset successfully"})
	})
}
