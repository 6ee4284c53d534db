package authsdk

import "github.com/shelfkeeper/shelfkeeper/pkg/jwtx"

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates with a username or email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// TokenResponse is returned by login (when no second factor is required),
// MFA verification and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// MFARequiredResponse is returned by login when the account has a second
// factor enabled. The client must follow up on the verify endpoint.
type MFARequiredResponse struct {
	MFARequired bool     `json:"mfa_required"`
	MFAToken    string   `json:"mfa_token"`
	Methods     []string `json:"methods"`
	ExpiresIn   int64    `json:"expires_in"`
}

// MFAVerifyRequest completes a pending login challenge. Code is either a
// 6-digit TOTP code or an 8-character backup code.
type MFAVerifyRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes the session behind a refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest swaps the account password. Code carries a current
// TOTP or backup code and is required when MFA is enabled.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	Code            string `json:"code,omitempty"`
}

// MFASetupResponse carries TOTP provisioning material. The secret and QR
// code are shown once during setup.
type MFASetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCodePNG  string `json:"qr_code_png"`
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}

// MFASetupCompleteRequest confirms the pending secret with a live code.
type MFASetupCompleteRequest struct {
	Code string `json:"code"`
}

// BackupCodesResponse returns freshly generated backup codes. They are
// never retrievable again.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// MFADisableRequest turns MFA off. Requires both the current password and
// a live TOTP or backup code.
type MFADisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// RegenerateBackupCodesRequest replaces the backup code set after
// re-proving a current code.
type RegenerateBackupCodesRequest struct {
	Code string `json:"code"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID                   string `json:"id"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	Role                 string `json:"role"`
	IsActive             bool   `json:"is_active"`
	IsVerified           bool   `json:"is_verified"`
	MFAEnabled           bool   `json:"mfa_enabled"`
	BackupCodesRemaining int    `json:"backup_codes_remaining,omitempty"`
	LastLoginAt          string `json:"last_login_at,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// UserListResponse pages through accounts on the admin surface.
type UserListResponse struct {
	Users  []UserResponse `json:"users"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SetRoleRequest changes a user's role on the admin surface.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// SessionResponse is one active session on the self-service surface.
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	MFAVerified bool   `json:"mfa_verified"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

// SessionListResponse wraps a user's active sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// SetVerifiedRequest toggles the verified flag on the admin surface.
type SetVerifiedRequest struct {
	Verified bool `json:"verified"`
}

// AuditEventResponse is one security log record.
type AuditEventResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	UserID    string `json:"user_id,omitempty"`
	RemoteIP  string `json:"remote_ip,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// AuditListResponse wraps a user's recent audit trail.
type AuditListResponse struct {
	Events []AuditEventResponse `json:"events"`
}

// HealthChecks reports the state of critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// HealthResponse is returned by the health probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// JWKSResponse is the published key set.
type JWKSResponse jwtx.JWKS
