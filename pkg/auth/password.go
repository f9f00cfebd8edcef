package auth

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 12

	// PasswordExpiryDays is how long a password stays valid after a change.
	PasswordExpiryDays = 90
)

// PasswordRules describes the strength requirements in user-facing terms.
var PasswordRules = []string{
	fmt.Sprintf("At least %d characters", MinPasswordLen),
	"At least one uppercase letter",
	"At least one lowercase letter",
	"At least one number",
	"At least one symbol",
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash.
// bcrypt's comparison is constant-time over the derived key.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidateStrength returns a user-facing message describing the first unmet
// requirement, or "" when the password is acceptable.
func ValidateStrength(password string) string {
	if len(password) < MinPasswordLen {
		return "Password is too short."
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return "Add at least one uppercase letter."
	case !hasLower:
		return "Add at least one lowercase letter."
	case !hasDigit:
		return "Add at least one number."
	case !hasSymbol:
		return "Add at least one symbol."
	}

	return ""
}

// NeedsReset reports whether a password must be changed before normal access:
// true when it has never been changed, or when its expiry has passed.
func NeedsReset(lastChange, expiresAt *time.Time, now time.Time) bool {
	if lastChange == nil {
		return true
	}
	if expiresAt != nil && expiresAt.Before(now) {
		return true
	}
	return false
}
