package models

import "time"

// Audit event types emitted by the auth core.
const (
	AuditEventLogin       = "auth.login"
	AuditEventLogout      = "auth.logout"
	AuditEventMFAVerify   = "auth.mfa.verify"
	AuditEventMFAEnable   = "auth.mfa.enable"
	AuditEventMFADisable  = "auth.mfa.disable"
	AuditEventUserCreate  = "users.create"
	AuditEventRoleUpdate  = "users.role.update"
	AuditEventUserEnable  = "users.enable"
	AuditEventUserDisable = "users.disable"
)

// AuditLog is a persisted audit event. Writes are best-effort; a failure to
// persist never fails the operation being audited.
type AuditLog struct {
	ID          string
	UserID      *string
	Operation   string
	TargetTable *string
	TargetID    *string
	EventType   string
	Success     bool
	Extra       map[string]string
	CreatedAt   time.Time
}
