package models

import (
	"time"
)

// User is an account identity. Users are never hard-deleted; deactivation is a
// soft-disable via IsActive.
type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	IsActive           bool
	Role               Role
	AccountLockedUntil *time.Time // Temporary lock expiration, nil when unlocked
	LastPasswordChange *time.Time
	PasswordExpiresAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Locked reports whether the account is under a temporary lock at the given time.
func (u *User) Locked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}
