package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/habitus/internal/apperrors"
	"github.com/nkiryanov/habitus/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, updated_at, email, first_name, last_name, password_hash,
role, is_active, is_email_confirmed, last_login_at,
phone, date_of_birth, street, number, complement, neighborhood, city, state, zip_code, country`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, first_name, last_name, password_hash, role, is_active, is_email_confirmed, country)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Profile.Country == "" {
		u.Profile.Country = models.DefaultCountry
	}

	rows, _ := r.DB.Query(ctx, createUser,
		u.ID, u.Email, u.FirstName, u.LastName, u.HashedPassword, u.Role, u.IsActive, u.IsEmailConfirmed, u.Profile.Country,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isUniqueViolation(err):
		return user, apperrors.ErrEmailAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1) AND deleted_at IS NULL
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const updateProfile = `-- name: UpdateProfile
UPDATE users
SET first_name = $2, last_name = $3, email = $4,
    phone = $5, date_of_birth = $6, street = $7, number = $8, complement = $9,
    neighborhood = $10, city = $11, state = $12, zip_code = $13, country = $14,
    updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + userColumns

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (models.User, error) {
	p := upd.Profile
	if p.Country == "" {
		p.Country = models.DefaultCountry
	}

	rows, _ := r.DB.Query(ctx, updateProfile,
		id, upd.FirstName, upd.LastName, upd.Email,
		p.Phone, p.DateOfBirth, p.Street, p.Number, p.Complement,
		p.Neighborhood, p.City, p.State, p.ZipCode, p.Country,
	)
	user, err := collectUser(rows)
	if isUniqueViolation(err) {
		return user, apperrors.ErrEmailInUse
	}
	return user, err
}

const setPasswordHash = `-- name: SetPasswordHash
UPDATE users
SET password_hash = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return r.execOne(ctx, setPasswordHash, id, hashedPassword)
}

const setEmailConfirmed = `-- name: SetEmailConfirmed
UPDATE users
SET is_email_confirmed = true, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) SetEmailConfirmed(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, setEmailConfirmed, id)
}

const setLastLogin = `-- name: SetLastLogin
UPDATE users
SET last_login_at = $2
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, setLastLogin, id, at)
}

const setActive = `-- name: SetActive
UPDATE users
SET is_active = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + userColumns

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setActive, id, active)
	return collectUser(rows)
}

const setRole = `-- name: SetRole
UPDATE users
SET role = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + userColumns

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setRole, id, role)
	return collectUser(rows)
}

const softDelete = `-- name: SoftDelete
UPDATE users
SET deleted_at = $2, is_active = false, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, softDelete, id, at)
}

const countUsers = `-- name: CountUsers
SELECT count(*) FROM users WHERE deleted_at IS NULL
`

const listUsers = `-- name: ListUsers
SELECT ` + userColumns + `
FROM users
WHERE deleted_at IS NULL
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`

func (r *UserRepo) ListUsers(ctx context.Context, limit int, offset int) ([]models.User, int, error) {
	var total int
	if err := r.DB.QueryRow(ctx, countUsers).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, listUsers, limit, offset)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return users, total, nil
}

// Exec statement that must touch exactly one user
func (r *UserRepo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.DB.Exec(ctx, sql, args...)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	var p = &u.Profile
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Email, &u.FirstName, &u.LastName, &u.HashedPassword,
		&u.Role, &u.IsActive, &u.IsEmailConfirmed, &u.LastLoginAt,
		&p.Phone, &p.DateOfBirth, &p.Street, &p.Number, &p.Complement, &p.Neighborhood, &p.City, &p.State, &p.ZipCode, &p.Country,
	)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
