package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditRegister         = "auth.register"
	AuditLoginSuccess     = "auth.login.success"
	AuditLoginFailed      = "auth.login.failed"
	AuditLoginThrottled   = "auth.login.throttled"
	AuditRefreshSuccess   = "auth.refresh.success"
	AuditRefreshReuse     = "auth.refresh.reuse_detected"
	AuditLogout           = "auth.logout"
	AuditLogoutAll        = "auth.logout_all"
	AuditPasswordChanged  = "auth.password.changed"
	AuditConfirmationSent = "auth.email.confirmation_sent"
	AuditEmailConfirmed   = "auth.email.confirmed"
	AuditResetRequested   = "auth.password.reset_requested"
	AuditPasswordReset    = "auth.password.reset"
	AuditProfileUpdated   = "user.profile.updated"
	AuditRoleChanged      = "admin.user.role_changed"
	AuditStatusChanged    = "admin.user.status_changed"
	AuditUserDeleted      = "admin.user.deleted"
)

type AuditEvent struct {
	ID        string // ULID, sortable by creation time
	Action    string
	UserID    *uuid.UUID
	IP        string
	UserAgent string
	Meta      map[string]any
	CreatedAt time.Time
}
