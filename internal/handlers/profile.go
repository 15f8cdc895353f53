package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/handlers/render"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
)

const dateLayout = time.DateOnly

type profileResponse struct {
	ID                uuid.UUID   `json:"id"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	FullName          string      `json:"fullName"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	DateOfBirth       *string     `json:"dateOfBirth"`
	Age               int         `json:"age"`
	Street            string      `json:"street"`
	Number            string      `json:"number"`
	Complement        string      `json:"complement"`
	Neighborhood      string      `json:"neighborhood"`
	City              string      `json:"city"`
	State             string      `json:"state"`
	ZipCode           string      `json:"zipCode"`
	Country           string      `json:"country"`
	FullAddress       string      `json:"fullAddress"`
	IsProfileComplete bool        `json:"isProfileComplete"`
	Role              models.Role `json:"role"`
	IsActive          bool        `json:"isActive"`
	IsEmailConfirmed  bool        `json:"isEmailConfirmed"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func newProfileResponse(u models.User, now time.Time) profileResponse {
	p := u.Profile

	var dob *string
	if p.DateOfBirth != nil {
		s := p.DateOfBirth.Format(dateLayout)
		dob = &s
	}

	return profileResponse{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		FullName:          u.FullName(),
		Email:             u.Email,
		Phone:             p.Phone,
		DateOfBirth:       dob,
		Age:               p.Age(now),
		Street:            p.Street,
		Number:            p.Number,
		Complement:        p.Complement,
		Neighborhood:      p.Neighborhood,
		City:              p.City,
		State:             p.State,
		ZipCode:           p.ZipCode,
		Country:           p.Country,
		FullAddress:       p.FullAddress(),
		IsProfileComplete: p.IsComplete(),
		Role:              u.Role,
		IsActive:          u.IsActive,
		IsEmailConfirmed:  u.IsEmailConfirmed,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func handleGetProfile(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mustClaims(w, r)
		if !ok {
			return
		}

		u, err := userService.GetByID(r.Context(), claims.UserID)
		switch {
		case err == nil:
			render.JSON(w, newProfileResponse(u, time.Now()))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get profile", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
		}
	})
}

func handleUpdateProfile(userService userService, auditService auditService, l logger.Logger) http.Handler {
	type request struct {
		FirstName    string `json:"firstName" validate:"required,max=50"`
		LastName     string `json:"lastName" validate:"required,max=50"`
		Email        string `json:"email" validate:"required,email,max=255"`
		Phone        string `json:"phone" validate:"max=20"`
		DateOfBirth  string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
		Street       string `json:"street" validate:"max=200"`
		Number       string `json:"number" validate:"max=20"`
		Complement   string `json:"complement" validate:"max=100"`
		Neighborhood string `json:"neighborhood" validate:"max=100"`
		City         string `json:"city" validate:"max=100"`
		State        string `json:"state" validate:"max=50"`
		ZipCode      string `json:"zipCode" validate:"omitempty,zipcode"`
		Country      string `json:"country" validate:"max=50"`
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

		var dob *time.Time
		if data.DateOfBirth != "" {
			// Format is checked by validator already
			t, _ := time.Parse(dateLayout, data.DateOfBirth)
			dob = &t
		}

		updated, err := userService.UpdateProfile(r.Context(), claims.UserID, models.ProfileUpdate{
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Email:     data.Email,
			Profile: models.Profile{
				Phone:        strings.TrimSpace(data.Phone),
				DateOfBirth:  dob,
				Street:       strings.TrimSpace(data.Street),
				Number:       strings.TrimSpace(data.Number),
				Complement:   strings.TrimSpace(data.Complement),
				Neighborhood: strings.TrimSpace(data.Neighborhood),
				City:         strings.TrimSpace(data.City),
				State:        strings.TrimSpace(data.State),
				ZipCode:      data.ZipCode,
				Country:      strings.TrimSpace(data.Country),
			},
		})
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrEmailInUse):
			render.ServiceError(w, "Email is already in use", http.StatusConflict)
			return
		default:
			l.Error("Failed to update profile", "error", err, "user_id", claims.UserID)
			render.InternalError(w)
			return
		}

		if !updated {
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		}

		recordAudit(r.Context(), auditService, models.AuditProfileUpdated, &claims.UserID, nil)
		render.JSON(w, messageResponse{Message: "Profile updated successfully"})
	})
}

func handleCheckEmail(userService userService, l logger.Logger) http.Handler {
	type response struct {
		Available bool   `json:"available"`
		Message   string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.PathValue("email"))
		if email == "" {
			render.ServiceError(w, "Email is required", http.StatusBadRequest)
			return
		}

		available, err := userService.IsEmailAvailable(r.Context(), email)
		if err != nil {
			l.Error("Failed to check email", "error", err)
			render.InternalError(w)
			return
		}

		res := response{Available: available, Message: "Email is available"}
		if !available {
			res.Message = "Email is already in use"
		}
		render.JSON(w, res)
	})
}
