package hasher

import (
	"errors"
	"fmt"
)

const (
	NameArgon2id = "argon2id"
	NameBcrypt   = "bcrypt"
)

var (
	ErrEmptyPassword    = errors.New("password must not be empty")
	ErrPasswordMismatch = errors.New("password does not match")
	ErrInvalidHash      = errors.New("invalid or unsupported password hash")
)

// Password hasher
// Compare has to return nil only if password matches the hash
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword string, password string) error
}

// Will be used as default one if user not provide it's own
var DefaultHasher PasswordHasher = NewArgon2id(DefaultArgon2idParams)

// Hasher by its configuration name, empty name means default one
func ByName(name string) (PasswordHasher, error) {
	switch name {
	case "", NameArgon2id:
		return DefaultHasher, nil
	case NameBcrypt:
		return BcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}
