package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventLogout               = "logout"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventSessionRestored      = "session_restored"
	auditEventGuardRefreshed       = "guard_refreshed"
	auditEventGuardUnauthenticated = "guard_unauthenticated"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrTransport   AuditErrorCode = "transport"
	auditErrAuthExpired AuditErrorCode = "auth_expired"
	auditErrAuthInvalid AuditErrorCode = "auth_invalid"
	auditErrValidation  AuditErrorCode = "validation"
	auditErrNoSession   AuditErrorCode = "no_session"
	auditErrStorage     AuditErrorCode = "storage_unavailable"
	auditErrInternal    AuditErrorCode = "internal_error"
)

func (e *Engine) scope() string {
	if session.IsClient(e.env) {
		return "client"
	}
	return "server"
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	user *User,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Scope:     e.scope(),
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Role = user.Role
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTransport):
		return auditErrTransport
	case errors.Is(err, ErrAuthExpired):
		return auditErrAuthExpired
	case errors.Is(err, ErrAuthInvalid):
		return auditErrAuthInvalid
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, session.ErrStorageUnavailable):
		return auditErrStorage
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
