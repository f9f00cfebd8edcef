package auth

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    TOTPStep,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestTOTPCodec_GenerateSecret(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")

	secret, uri, err := codec.GenerateSecret("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "alice")
	assert.Contains(t, uri, "issuer=Catkeep")

	secret2, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)
	assert.NotEqual(t, secret, secret2)
}

func TestTOTPCodec_VerifyCode_SameStep(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")
	secret, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)

	now := time.Now()
	ok, err := codec.VerifyCode(secret, codeAt(t, secret, now), 0, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTPCodec_VerifyCode_AdjacentStepNeedsWindow(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")
	secret, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)

	// Pin the reference time to a step boundary so "one step ago" is
	// unambiguous.
	now := time.Unix((time.Now().Unix()/TOTPStep)*TOTPStep, 0)
	previous := codeAt(t, secret, now.Add(-TOTPStep*time.Second))

	ok, err := codec.VerifyCode(secret, previous, 0, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = codec.VerifyCode(secret, previous, 1, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTPCodec_VerifyCode_TwoStepsNeedsWideWindow(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")
	secret, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)

	now := time.Unix((time.Now().Unix()/TOTPStep)*TOTPStep, 0)
	stale := codeAt(t, secret, now.Add(-2*TOTPStep*time.Second))

	ok, err := codec.VerifyCode(secret, stale, ActivationWindow, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = codec.VerifyCode(secret, stale, LoginWindow, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTPCodec_VerifyCode_RejectsMalformedShapes(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")
	secret, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "12345a", "½23456"} {
		ok, err := codec.VerifyCode(secret, code, LoginWindow, time.Now())
		require.NoError(t, err)
		assert.False(t, ok, "code %q", code)
	}
}

func TestTOTPCodec_VerifyCode_NormalizesSecret(t *testing.T) {
	codec := NewTOTPCodec("Catkeep")
	secret, _, err := codec.GenerateSecret("alice")
	require.NoError(t, err)

	// Manual entry often arrives lowercased with grouping whitespace.
	messy := " " + secret[:4] + " " + secret[4:] + " "
	now := time.Now()

	ok, err := codec.VerifyCode(messy, codeAt(t, secret, now), 0, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNormalizeSecret(t *testing.T) {
	assert.Equal(t, "JBSWY3DP", NormalizeSecret(" jbsw y3dp\t"))
	assert.Equal(t, "", NormalizeSecret("   "))
}

func TestValidCodeShape(t *testing.T) {
	assert.True(t, ValidCodeShape("123456"))
	assert.False(t, ValidCodeShape("12345"))
	assert.False(t, ValidCodeShape("1234567"))
	assert.False(t, ValidCodeShape("12 456"))
	assert.False(t, ValidCodeShape("abcdef"))
}
