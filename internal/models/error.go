package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential verification errors. The invalid-credentials message is shared
	// between unknown-user, inactive-user, and wrong-password outcomes so a caller
	// cannot distinguish them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDisabled    = errors.New("account is disabled")

	// MFA errors
	ErrMFANotConfigured = errors.New("mfa is not configured")
	ErrMFAInvalidCode   = errors.New("invalid verification code")

	// Role management errors
	ErrInsufficientPrivilege = errors.New("insufficient privileges for this action")
	ErrDuplicateActiveAdmin  = errors.New("only one active admin is allowed")
)
