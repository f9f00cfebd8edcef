package models

import "time"

// MFASecret is one TOTP secret provisioning event. At most one row per user is
// active at any time; activating a new secret revokes prior active rows in the
// same transaction. Revoked rows are kept for audit.
type MFASecret struct {
	ID             string
	UserID         string
	EncryptedValue []byte // Ciphertext, or the raw Base32 secret in plaintext mode
	IV             []byte // CBC initialization vector; nil when stored in plaintext
	IsActive       bool
	FailedAttempts int
	LastUsedAt     *time.Time
	CreatedAt      time.Time
	RevokedAt      *time.Time
}

// Encrypted reports whether the stored value carries an IV, i.e. was written by
// the encrypting codec rather than the plaintext fallback.
func (s *MFASecret) Encrypted() bool {
	return len(s.IV) > 0
}

// ProvisionedSecret is the output of generating a fresh TOTP secret. It is never
// persisted in this form; the caller holds it until activation succeeds.
type ProvisionedSecret struct {
	Secret          string // Base32-encoded shared secret
	ProvisioningURI string // otpauth:// URI for authenticator apps
}
