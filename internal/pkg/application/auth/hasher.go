package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordTooShort = errors.New("password too short")

// HashPassword hashes a plaintext password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Bcrypt compares a submitted password with a stored bcrypt hash
func Bcrypt(submitted string, stored any) bool {
	var hash []byte

	switch h := stored.(type) {
	case string:
		hash = []byte(h)
	case []byte:
		hash = h
	default:
		return false
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(submitted)) == nil
}
