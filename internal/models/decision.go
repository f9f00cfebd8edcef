package models

// AuthDecision is the in-memory outcome of a successful credential check. It is
// never persisted; rejections travel as sentinel errors instead
// (ErrInvalidCredentials, ErrAccountLocked).
type AuthDecision struct {
	User               *User
	NeedsPasswordReset bool
	HasMFA             bool
}
