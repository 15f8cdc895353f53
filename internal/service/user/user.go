package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/repository"
	"github.com/nkiryanov/habitus/internal/service/auth/hasher"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type UserService struct {
	hasher  hasher.PasswordHasher
	storage repository.Storage
}

func NewService(h hasher.PasswordHasher, storage repository.Storage) *UserService {
	if h == nil {
		h = hasher.DefaultHasher
	}

	return &UserService{
		hasher:  h,
		storage: storage,
	}
}

// Create active user with plain 'user' role
// Fails with apperrors.ErrEmailAlreadyExists if email is taken
func (s *UserService) Register(ctx context.Context, p RegisterParams) (models.User, error) {
	var user models.User

	email := models.NormalizeEmail(p.Email)
	if email == "" {
		return user, errors.New("email must not be empty")
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, models.User{
		ID:             uuid.New(),
		Email:          email,
		FirstName:      strings.TrimSpace(p.FirstName),
		LastName:       strings.TrimSpace(p.LastName),
		HashedPassword: hash,
		Role:           models.RoleUser,
		IsActive:       true,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Check user credentials
// Unknown email, wrong password and disabled account are all apperrors.ErrInvalidCredentials
func (s *UserService) CheckCredentials(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, models.NormalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

// Remember login time, returns the stored value
func (s *UserService) RecordLogin(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	now := time.Now().Truncate(time.Microsecond)
	if err := s.storage.User().SetLastLogin(ctx, userID, now); err != nil {
		return time.Time{}, fmt.Errorf("can't update last login. Err: %w", err)
	}
	return now, nil
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Returns false without error if current password does not match
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) (bool, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return false, nil
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return false, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	if err := s.storage.User().SetPasswordHash(ctx, userID, hash); err != nil {
		return false, fmt.Errorf("can't save password. Err: %w", err)
	}

	return true, nil
}

// Returns false without error if user does not exist
// Fails with apperrors.ErrEmailInUse if email belongs to another user
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (bool, error) {
	upd.Email = models.NormalizeEmail(upd.Email)
	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)

	_, err := s.storage.User().UpdateProfile(ctx, userID, upd)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("can't update profile. Err: %w", err)
	}
}

func (s *UserService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.storage.User().GetUserByEmail(ctx, models.NormalizeEmail(email))
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return true, nil
	default:
		return false, err
	}
}

type Page struct {
	Users    []models.User
	Total    int
	Page     int
	PageSize int
}

// Page numbers start from 1
func (s *UserService) List(ctx context.Context, page int, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	users, total, err := s.storage.User().ListUsers(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("can't list users. Err: %w", err)
	}

	return Page{Users: users, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *UserService) SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error) {
	return s.storage.User().SetActive(ctx, userID, active)
}

func (s *UserService) SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, fmt.Errorf("unknown role %q", role)
	}
	return s.storage.User().SetRole(ctx, userID, role)
}

// Soft delete, the email becomes available again
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.storage.User().SoftDelete(ctx, userID, time.Now())
}
