package domain

import "time"

// Audit event kinds recorded by the auth flows.
const (
	AuditLoginSucceeded      = "login_succeeded"
	AuditLoginFailed         = "login_failed"
	AuditMFAChallengeIssued  = "mfa_challenge_issued"
	AuditMFAVerifySucceeded  = "mfa_verify_succeeded"
	AuditMFAVerifyFailed     = "mfa_verify_failed"
	AuditMFAEnabled          = "mfa_enabled"
	AuditMFADisabled         = "mfa_disabled"
	AuditBackupCodeConsumed  = "backup_code_consumed"
	AuditBackupCodesRotated  = "backup_codes_rotated"
	AuditTokenRefreshed      = "token_refreshed"
	AuditTokenReplayDetected = "token_replay_detected"
	AuditLogout              = "logout"
	AuditPasswordChanged     = "password_changed"
	AuditUserSignedUp        = "user_signed_up"
	AuditUserUpdatedByAdmin  = "user_updated_by_admin"
	AuditUserDeletedByAdmin  = "user_deleted_by_admin"
)

// AuditEvent is an append-only security log record. UserID may be empty for
// failures against unknown identifiers.
type AuditEvent struct {
	ID        string
	Kind      string
	UserID    string
	RemoteIP  string
	Detail    string
	CreatedAt time.Time
}
