package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Admin area is available for admins and superadmins
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

const DefaultCountry = "Brasil"

type User struct {
	ID               uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Email            string
	FirstName        string
	LastName         string
	HashedPassword   string
	Role             Role
	IsActive         bool
	IsEmailConfirmed bool
	LastLoginAt      *time.Time // nil if user never logged in
	Profile          Profile
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Optional personal data, empty string means "not set"
type Profile struct {
	Phone        string
	DateOfBirth  *time.Time
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
}

// Age in full years at the given moment, zero if date of birth is unknown
func (p Profile) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return 0
	}

	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return max(age, 0)
}

func (p Profile) IsComplete() bool {
	return p.Phone != "" && p.DateOfBirth != nil && p.Street != "" && p.Number != "" &&
		p.City != "" && p.State != "" && p.ZipCode != ""
}

// Single line address, empty parts are skipped
func (p Profile) FullAddress() string {
	street := p.Street
	if street != "" && p.Number != "" {
		street += ", " + p.Number
	}
	if street != "" && p.Complement != "" {
		street += " - " + p.Complement
	}

	parts := make([]string, 0, 5)
	for _, part := range []string{street, p.Neighborhood, p.City, p.State, p.ZipCode} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Editable part of the user record
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
	Profile   Profile
}

// Email normalized the way it is stored
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
