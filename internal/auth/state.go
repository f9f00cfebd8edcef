package auth

import "strings"

// Stage is the tagged per-session authentication state. It replaces the
// combinatorial boolean flags (mfaVerified, requiresMfa, mustSetupMfa) with a
// single value the access gate can switch on.
type Stage string

const (
	// StageAnonymous: no credential check has succeeded.
	StageAnonymous Stage = "anonymous"
	// StagePendingMFASetup: password verified, no MFA enrolled yet. Enrollment
	// is mandatory; only the setup flow and logout are reachable.
	StagePendingMFASetup Stage = "pending_mfa_setup"
	// StagePendingMFAVerify: password verified, MFA enrolled, code not yet
	// presented. No session row exists yet.
	StagePendingMFAVerify Stage = "pending_mfa_verify"
	// StageFullyAuthenticated: all required factors verified.
	StageFullyAuthenticated Stage = "authenticated"
)

// SessionState is everything the orchestrator tracks per login session.
// MFAUserID holds the user identity between password verification and MFA
// verification, while the session is otherwise anonymous.
type SessionState struct {
	Stage                Stage
	UserID               string
	MFAUserID            string
	PendingPasswordReset bool
}

// Anonymous is the zero state for requests with no session.
func Anonymous() SessionState {
	return SessionState{Stage: StageAnonymous}
}

// Gate outcomes.
const (
	PathLogin     = "/login"
	PathLogout    = "/logout"
	PathMFASetup  = "/mfa/setup"
	PathMFAVerify = "/mfa/verify"
	PathPassword  = "/account/password"
)

// mfaExemptPrefixes are reachable while MFA verification is still pending.
var mfaExemptPrefixes = []string{"/mfa", "/logout", "/public", "/healthz"}

// GateDecision is the pure access-control verdict for one request.
type GateDecision struct {
	Allow      bool
	RedirectTo string // where to send a denied request
}

// Allow is the access-control gate applied to every protected request. It is
// pure: the verdict depends only on the session state and the request path.
//
// Rules, in precedence order:
//  1. Anonymous sessions reach only the public prefixes and the login page.
//  2. A user who must still enrol in MFA reaches only the setup flow and
//     logout, regardless of anything else.
//  3. A fully authenticated session with a pending password reset is steered
//     to the password-change page before normal access.
//  4. Sessions pending MFA verification reach only the exempt prefixes.
func Allow(state SessionState, path string) GateDecision {
	switch state.Stage {
	case StageAnonymous:
		if hasAnyPrefix(path, "/public", "/healthz") || path == PathLogin {
			return GateDecision{Allow: true}
		}
		return GateDecision{RedirectTo: PathLogin}

	case StagePendingMFASetup:
		if strings.HasPrefix(path, PathMFASetup) || strings.HasPrefix(path, PathLogout) {
			return GateDecision{Allow: true}
		}
		return GateDecision{RedirectTo: PathMFASetup}

	case StagePendingMFAVerify:
		if hasAnyPrefix(path, mfaExemptPrefixes...) {
			return GateDecision{Allow: true}
		}
		return GateDecision{RedirectTo: PathMFAVerify}

	case StageFullyAuthenticated:
		if state.PendingPasswordReset &&
			!hasAnyPrefix(path, PathPassword, "/logout", "/public", "/healthz") {
			return GateDecision{RedirectTo: PathPassword}
		}
		return GateDecision{Allow: true}
	}

	return GateDecision{RedirectTo: PathLogin}
}

func hasAnyPrefix(path string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
