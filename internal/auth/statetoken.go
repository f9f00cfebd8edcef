package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateClaims is the signed wire form of a SessionState plus the opaque
// session token (SID). The SID, not the JWT, is what session rows are keyed
// by (after hashing).
type stateClaims struct {
	Stage                string `json:"stage"`
	UserID               string `json:"uid,omitempty"`
	MFAUserID            string `json:"mfa_uid,omitempty"`
	PendingPasswordReset bool   `json:"pwd_reset,omitempty"`
	SID                  string `json:"sid,omitempty"`
	TempSecret           string `json:"tmp_secret,omitempty"`
	jwt.RegisteredClaims
}

// StateTokenManager signs and validates the session-state cookie.
type StateTokenManager struct {
	secret []byte
	expiry time.Duration
}

func NewStateTokenManager(secret string, expiry time.Duration) *StateTokenManager {
	return &StateTokenManager{secret: []byte(secret), expiry: expiry}
}

// StatePayload is what travels in the signed cookie: the tagged session state,
// the opaque session token, and (only during MFA enrollment) the provisional
// secret awaiting its first valid code.
//
// TempSecret rides in a signed but unencrypted JWT: anyone holding the cookie
// can base64-decode it. The cookie is HttpOnly and the secret belongs to the
// enrolling user themselves, is not yet activated, and is discarded from the
// cookie on activation.
type StatePayload struct {
	State      SessionState
	SID        string
	TempSecret string
}

// Issue signs the payload into a compact token.
func (m *StateTokenManager) Issue(p StatePayload) (string, error) {
	now := time.Now()
	claims := &stateClaims{
		Stage:                string(p.State.Stage),
		UserID:               p.State.UserID,
		MFAUserID:            p.State.MFAUserID,
		PendingPasswordReset: p.State.PendingPasswordReset,
		SID:                  p.SID,
		TempSecret:           p.TempSecret,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return signed, nil
}

// Parse validates the signature and expiry and returns the payload. Any
// failure yields the anonymous payload along with the error, so callers can
// treat a bad cookie as no cookie.
func (m *StateTokenManager) Parse(tokenString string) (StatePayload, error) {
	anonymous := StatePayload{State: Anonymous()}

	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return anonymous, fmt.Errorf("invalid state token: %w", err)
	}

	stage := Stage(claims.Stage)
	switch stage {
	case StageAnonymous, StagePendingMFASetup, StagePendingMFAVerify, StageFullyAuthenticated:
	default:
		return anonymous, fmt.Errorf("unknown session stage %q", claims.Stage)
	}

	return StatePayload{
		State: SessionState{
			Stage:                stage,
			UserID:               claims.UserID,
			MFAUserID:            claims.MFAUserID,
			PendingPasswordReset: claims.PendingPasswordReset,
		},
		SID:        claims.SID,
		TempSecret: claims.TempSecret,
	}, nil
}
