package models

import "time"

// Session is one live login. The session token is hashed before storage;
// deactivation sets ExpiresAt to now instead of deleting the row, preserving
// the audit trail.
type Session struct {
	ID                     string
	TokenHash              string
	UserID                 string
	IPAddress              string
	DeviceFingerprint      string
	TLSVersion             string
	TLSCipherSuite         string
	CertificateFingerprint string
	LastActivity           time.Time
	ExpiresAt              time.Time
	CreatedAt              time.Time
}

// Active reports whether the session has not yet expired or been deactivated.
func (s *Session) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// SessionMeta carries per-request transport details into session bookkeeping.
type SessionMeta struct {
	IPAddress              string
	UserAgent              string
	DeviceFingerprint      string
	TLSVersion             string
	TLSCipherSuite         string
	CertificateFingerprint string
}
