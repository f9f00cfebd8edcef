package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPStep is the RFC 6238 time step in seconds.
	TOTPStep = 30
	// TOTPDigits is the required code length. Codes of any other shape are
	// rejected before candidate generation.
	TOTPDigits = 6

	// ActivationWindow and LoginWindow are look-around widths in steps. The
	// asymmetry (tight during enrollment, tolerant during login) is a policy
	// constant, not an algorithmic requirement.
	ActivationWindow = 1
	LoginWindow      = 2

	secretSize = 32 // raw bytes before Base32 encoding
)

// TOTPCodec generates TOTP secrets and verifies codes against an explicit
// look-around window.
type TOTPCodec struct {
	issuer string
}

func NewTOTPCodec(issuer string) *TOTPCodec {
	return &TOTPCodec{issuer: issuer}
}

// GenerateSecret produces a fresh random secret and its otpauth:// provisioning
// URI labelled for the given account. Pure: nothing is persisted.
func (c *TOTPCodec) GenerateSecret(accountName string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.issuer,
		AccountName: accountName,
		SecretSize:  secretSize,
		Period:      TOTPStep,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// VerifyCode checks a presented code against the shared secret at the given
// time. Candidate codes are computed for each step offset in [-window, window]
// and the code is accepted iff it exactly matches one of them.
func (c *TOTPCodec) VerifyCode(secret, code string, window int, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if !ValidCodeShape(code) {
		return false, nil
	}

	secret = NormalizeSecret(secret)
	opts := totp.ValidateOpts{
		Period:    TOTPStep,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	for d := -window; d <= window; d++ {
		candidate, err := totp.GenerateCodeCustom(secret, at.Add(time.Duration(d)*TOTPStep*time.Second), opts)
		if err != nil {
			return false, fmt.Errorf("failed to compute candidate code: %w", err)
		}
		if candidate == code {
			return true, nil
		}
	}

	return false, nil
}

// NormalizeSecret strips whitespace and uppercases a Base32 secret, matching
// what authenticator apps accept during manual entry.
func NormalizeSecret(secret string) string {
	return strings.ToUpper(strings.Join(strings.Fields(secret), ""))
}

// ValidCodeShape reports whether the code is exactly six ASCII digits.
func ValidCodeShape(code string) bool {
	if len(code) != TOTPDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
