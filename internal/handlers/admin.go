package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/handlers/userctx"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
)

type adminUserResponse struct {
	userResponse
	UpdatedAt time.Time `json:"updatedAt"`
}

func newAdminUserResponse(u models.User) adminUserResponse {
	return adminUserResponse{userResponse: newUserResponse(u), UpdatedAt: u.UpdatedAt}
}

// Positive integer query value or def
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func handleListUsers(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := userService.List(r.Context(), queryInt(r, "page", 1), queryInt(r, "pageSize", 0))
		if err != nil {
			l.Error("Failed to list users", "error", err)
			render.InternalError(w)
			return
		}

		users := make([]adminUserResponse, 0, len(page.Users))
		for _, u := range page.Users {
			users = append(users, newAdminUserResponse(u))
		}

		w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
		w.Header().Set("X-Page", strconv.Itoa(page.Page))
		w.Header().Set("X-Page-Size", strconv.Itoa(page.PageSize))
		render.JSON(w, users)
	})
}

func handleGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUserID(w, r)
		if !ok {
			return
		}

		u, err := userService.GetByID(r.Context(), id)
		switch {
		case err == nil:
			render.JSON(w, newAdminUserResponse(u))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get user", "error", err, "user_id", id)
			render.InternalError(w)
		}
	})
}

func handleSetRole(userService userService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		Role models.Role `json:"role" validate:"required,oneof=user admin superadmin"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}
		id, ok := pathUserID(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if id == claims.UserID {
			render.ServiceError(w, "You can not change your own role", http.StatusBadRequest)
			return
		}

		u, err := userService.SetRole(r.Context(), id, data.Role)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to set role", "error", err, "user_id", id)
			render.InternalError(w)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditRoleChanged, &claims.UserID, map[string]any{
			"target_user_id": u.ID.String(),
			"role":           string(u.Role),
		})
		render.JSON(w, messageResponse{Message: "User role updated successfully"})
	})
}

func handleSetStatus(userService userService, authService authService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		IsActive *bool `json:"isActive" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}
		id, ok := pathUserID(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		u, err := userService.SetActive(ctx, id, *data.IsActive)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to set user status", "error", err, "user_id", id)
			render.InternalError(w)
			return
		}

		message := "User activated successfully"
		if !u.IsActive {
			message = "User deactivated successfully"
			// Disabled user must not keep open sessions
			if err := authService.RevokeAll(ctx, u.ID, userctx.ClientFromContext(ctx).IP); err != nil {
				l.Error("Failed to revoke tokens of deactivated user", "error", err, "user_id", u.ID)
			}
		}

		recordAudit(ctx, auditService, models.AuditStatusChanged, &claims.UserID, map[string]any{
			"target_user_id": u.ID.String(),
			"is_active":      u.IsActive,
		})
		render.JSON(w, messageResponse{Message: message})
	})
}

func handleDeleteUser(userService userService, authService authService, auditService auditService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}
		id, ok := pathUserID(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		if id == claims.UserID {
			render.ServiceError(w, "You can not delete your own account", http.StatusBadRequest)
			return
		}

		err := userService.Delete(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			l.Error("Failed to delete user", "error", err, "user_id", id)
			render.InternalError(w)
			return
		}

		if err := authService.RevokeAll(ctx, id, userctx.ClientFromContext(ctx).IP); err != nil {
			l.Error("Failed to revoke tokens of deleted user", "error", err, "user_id", id)
		}

		recordAudit(ctx, auditService, models.AuditUserDeleted, &claims.UserID, map[string]any{
			"target_user_id": id.String(),
		})
		render.JSON(w, messageResponse{Message: "User deleted successfully"})
	})
}

func handleListAudit(auditService auditService, l logger.Logger) http.Handler {
	type event struct {
		ID        string         `json:"id"`
		Action    string         `json:"action"`
		UserID    *uuid.UUID     `json:"userId"`
		IP        string         `json:"ipAddress"`
		UserAgent string         `json:"userAgent"`
		Meta      map[string]any `json:"meta"`
		CreatedAt time.Time      `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events, err := auditService.List(r.Context(), queryInt(r, "limit", 0))
		if err != nil {
			l.Error("Failed to list audit events", "error", err)
			render.InternalError(w)
			return
		}

		res := make([]event, 0, len(events))
		for _, e := range events {
			res = append(res, event{
				ID:        e.ID,
				Action:    e.Action,
				UserID:    e.UserID,
				IP:        e.IP,
				UserAgent: e.UserAgent,
				Meta:      e.Meta,
				CreatedAt: e.CreatedAt,
			})
		}
		render.JSON(w, res)
	})
}
