package models

import "time"

// TrustedDevice maps a hashed device token to a user. The raw token lives only
// in the client cookie; the server stores its SHA-256 hash. Unique on
// (UserID, FingerprintHash).
type TrustedDevice struct {
	ID              string
	UserID          string
	FingerprintHash string
	DeviceName      string
	IsTrusted       bool
	TrustExpiresAt  time.Time
	RevokedAt       *time.Time
	FirstSeen       time.Time
	LastSeen        time.Time
}

// TrustedAt reports whether the device satisfies every trust condition at the
// given time: trusted flag set, not revoked, trust window not elapsed.
func (d *TrustedDevice) TrustedAt(now time.Time) bool {
	if !d.IsTrusted || d.RevokedAt != nil {
		return false
	}
	return d.TrustExpiresAt.After(now)
}
