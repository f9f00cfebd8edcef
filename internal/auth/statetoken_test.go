package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTokenManager_RoundTrip(t *testing.T) {
	tm := NewStateTokenManager("test-secret", time.Hour)

	payload := StatePayload{
		State: SessionState{
			Stage:                StagePendingMFAVerify,
			MFAUserID:            "user-1",
			PendingPasswordReset: true,
		},
		SID:        "sid-1",
		TempSecret: "JBSWY3DP",
	}

	token, err := tm.Issue(payload)
	require.NoError(t, err)

	parsed, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, payload, parsed)
}

func TestStateTokenManager_BadSignatureYieldsAnonymous(t *testing.T) {
	tm := NewStateTokenManager("test-secret", time.Hour)
	other := NewStateTokenManager("different-secret", time.Hour)

	token, err := tm.Issue(StatePayload{State: SessionState{Stage: StageFullyAuthenticated, UserID: "user-1"}})
	require.NoError(t, err)

	parsed, err := other.Parse(token)
	assert.Error(t, err)
	assert.Equal(t, Anonymous(), parsed.State)
	assert.Empty(t, parsed.SID)
}

func TestStateTokenManager_ExpiredYieldsAnonymous(t *testing.T) {
	tm := NewStateTokenManager("test-secret", -time.Minute)

	token, err := tm.Issue(StatePayload{State: SessionState{Stage: StageFullyAuthenticated, UserID: "user-1"}})
	require.NoError(t, err)

	parsed, err := tm.Parse(token)
	assert.Error(t, err)
	assert.Equal(t, Anonymous(), parsed.State)
}

func TestStateTokenManager_GarbageYieldsAnonymous(t *testing.T) {
	tm := NewStateTokenManager("test-secret", time.Hour)

	for _, input := range []string{"", "not-a-jwt", "a.b.c"} {
		parsed, err := tm.Parse(input)
		assert.Error(t, err)
		assert.Equal(t, Anonymous(), parsed.State)
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-1")
	h2 := HashToken("token-1")
	h3 := HashToken("token-2")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.NotContains(t, h1, "token")
}
