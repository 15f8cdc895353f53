package apperrors

import (
	"errors"
)

var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrEmailInUse         = errors.New("email is used by another user")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenInactive = errors.New("refresh token is revoked or expired")
	ErrRefreshTokenReused   = errors.New("rotated refresh token presented again")

	ErrInvalidToken = errors.New("invalid access token")

	// One-time tokens sent by email
	ErrUserTokenInvalid      = errors.New("token is unknown, used or expired")
	ErrEmailAlreadyConfirmed = errors.New("email is already confirmed")
)
