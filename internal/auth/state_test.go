package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow_Anonymous(t *testing.T) {
	state := Anonymous()

	assert.True(t, Allow(state, "/login").Allow)
	assert.True(t, Allow(state, "/public/adoptions").Allow)
	assert.True(t, Allow(state, "/healthz").Allow)

	denied := Allow(state, "/cats")
	assert.False(t, denied.Allow)
	assert.Equal(t, PathLogin, denied.RedirectTo)
}

func TestAllow_PendingMFASetup(t *testing.T) {
	state := SessionState{Stage: StagePendingMFASetup, MFAUserID: "user-1"}

	assert.True(t, Allow(state, "/mfa/setup").Allow)
	assert.True(t, Allow(state, "/mfa/setup/verify").Allow)
	assert.True(t, Allow(state, "/logout").Allow)

	// Enrollment is mandatory; everything else funnels to setup, even public
	// paths that an anonymous session could reach.
	for _, path := range []string{"/cats", "/mfa/verify", "/public/adoptions", "/account/password"} {
		denied := Allow(state, path)
		assert.False(t, denied.Allow, "path %s", path)
		assert.Equal(t, PathMFASetup, denied.RedirectTo)
	}
}

func TestAllow_PendingMFAVerify(t *testing.T) {
	state := SessionState{Stage: StagePendingMFAVerify, MFAUserID: "user-1"}

	for _, path := range []string{"/mfa/verify", "/mfa/setup", "/logout", "/public/adoptions", "/healthz"} {
		assert.True(t, Allow(state, path).Allow, "path %s", path)
	}

	denied := Allow(state, "/cats")
	assert.False(t, denied.Allow)
	assert.Equal(t, PathMFAVerify, denied.RedirectTo)
}

func TestAllow_FullyAuthenticated(t *testing.T) {
	state := SessionState{Stage: StageFullyAuthenticated, UserID: "user-1"}

	for _, path := range []string{"/cats", "/account/password", "/mfa/setup", "/logout"} {
		assert.True(t, Allow(state, path).Allow, "path %s", path)
	}
}

func TestAllow_PendingPasswordReset(t *testing.T) {
	state := SessionState{
		Stage:                StageFullyAuthenticated,
		UserID:               "user-1",
		PendingPasswordReset: true,
	}

	assert.True(t, Allow(state, "/account/password").Allow)
	assert.True(t, Allow(state, "/logout").Allow)
	assert.True(t, Allow(state, "/public/adoptions").Allow)

	denied := Allow(state, "/cats")
	assert.False(t, denied.Allow)
	assert.Equal(t, PathPassword, denied.RedirectTo)
}

func TestAllow_UnknownStageDeniedClosed(t *testing.T) {
	denied := Allow(SessionState{Stage: Stage("bogus")}, "/cats")
	assert.False(t, denied.Allow)
	assert.Equal(t, PathLogin, denied.RedirectTo)
}
