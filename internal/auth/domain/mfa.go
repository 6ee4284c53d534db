package domain

import "time"

// MFAChallengeResponse is returned when a login needs a second factor
// before tokens can be issued.
type MFAChallengeResponse struct {
	MFARequired bool     `json:"mfa_required"` // always true
	MFAToken    string   `json:"mfa_token"`    // opaque challenge reference
	Methods     []string `json:"methods"`      // e.g. ["totp", "backup_codes"]
	ExpiresIn   int64    `json:"expires_in"`   // seconds until the challenge lapses
}

// MFAChallenge is a pending second-factor challenge created by a successful
// password check. It is single-use and expires quickly.
type MFAChallenge struct {
	ID        string // the mfa_token handed to the client
	UserID    string
	SessionID string // session id the eventual token pair will carry
	Attempts  int    // failed verification attempts so far
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MFASecret is a user's TOTP enrolment. A secret exists in a pending state
// between setup initiation and confirmation; only confirmed secrets gate
// logins.
type MFASecret struct {
	UserID     string
	Secret     string     // base32 TOTP secret
	EnabledAt  *time.Time // nil while setup is pending confirmation
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Enabled reports whether setup was confirmed.
func (s *MFASecret) Enabled() bool {
	return s.EnabledAt != nil
}

// MFAEnrollResponse carries everything a client needs to provision an
// authenticator app.
type MFAEnrollResponse struct {
	Secret     string `json:"secret"`      // base32 secret for manual entry
	OTPAuthURL string `json:"otpauth_url"` // otpauth:// provisioning URI
	QRCodePNG  string `json:"qr_code_png"` // base64 PNG of the provisioning QR
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}

// BackupCode is a stored single-use recovery code. Only the fingerprint is
// persisted; the plaintext is shown once at generation time.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string
	CreatedAt time.Time
}
