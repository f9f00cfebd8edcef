package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewDeviceToken issues an opaque random token for the trusted-device cookie.
// Only its hash is ever stored server-side.
func NewDeviceToken() string {
	return uuid.NewString()
}

// NewSessionToken issues the opaque per-login token that session rows are
// keyed by (after hashing).
func NewSessionToken() string {
	return uuid.NewString()
}

// HashToken is the one-way, deterministic hash applied to device and session
// tokens before lookup or storage. A database compromise does not expose
// usable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
