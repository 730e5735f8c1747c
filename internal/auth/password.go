// Package auth hashes credentials and issues and resolves bearer tokens.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"pfm/internal/core"
)

const (
	MinPasswordLen = 6
	// bcrypt only reads the first 72 bytes.
	MaxPasswordLen = 72
)

// ValidatePassword reports core.ErrWeakPassword or core.ErrPasswordTooLong.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLen:
		return core.ErrWeakPassword
	case len(password) > MaxPasswordLen:
		return core.ErrPasswordTooLong
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword returns core.ErrUnauthenticated when password does not match.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrUnauthenticated
	}
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	return nil
}
