package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/strideapp/stride/internal/model"
)

const (
	minPasswordLength = 6
	bcryptCost        = 10
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// HashPassword validates and hashes a plaintext password.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against its stored hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidateEmail rejects malformed or oversized email addresses.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", model.ErrValidation)
	}
	if len(email) > 255 {
		return fmt.Errorf("%w: email address too long", model.ErrValidation)
	}
	return nil
}
