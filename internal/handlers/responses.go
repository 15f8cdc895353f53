package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/handlers/userctx"
	"github.com/nkiryanov/habitus/internal/models"
)

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID               uuid.UUID   `json:"id"`
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	FullName         string      `json:"fullName"`
	Email            string      `json:"email"`
	Role             models.Role `json:"role"`
	IsEmailConfirmed bool        `json:"isEmailConfirmed"`
	IsActive         bool        `json:"isActive"`
	LastLoginAt      *time.Time  `json:"lastLoginAt"`
	CreatedAt        time.Time   `json:"createdAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		FullName:         u.FullName(),
		Email:            u.Email,
		Role:             u.Role,
		IsEmailConfirmed: u.IsEmailConfirmed,
		IsActive:         u.IsActive,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func newTokenResponse(pair models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		ExpiresAt:    pair.Access.ExpiresAt,
	}
}

// Claims must be present for handlers behind auth middleware
func mustClaims(w http.ResponseWriter, r *http.Request) (models.AccessClaims, bool) {
	claims, ok := userctx.FromContext(r.Context())
	if !ok {
		render.InternalError(w)
	}
	return claims, ok
}

// Parse {id} path value, renders 404 for malformed ids
func pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "User not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func recordAudit(ctx context.Context, as auditService, action string, userID *uuid.UUID, meta map[string]any) {
	client := userctx.ClientFromContext(ctx)
	as.Record(ctx, models.AuditEvent{
		Action:    action,
		UserID:    userID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Meta:      meta,
	})
}
