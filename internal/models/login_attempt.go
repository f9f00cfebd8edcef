package models

import "time"

// LoginAttempt is an append-only record of a credential check. Attempts are
// recorded under the presented username even when no such user exists, so the
// failure history cannot be used to probe for valid accounts.
type LoginAttempt struct {
	ID          string
	Username    string
	IPAddress   string
	Success     bool
	AttemptedAt time.Time
}
