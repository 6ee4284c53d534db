package domain

import "time"

// TokenPair is what a completed authentication returns: a short-lived JWT
// access token plus a rotating refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// Session is the stored record for one issued refresh token. The SessionID
// survives rotation; the JTI changes with every refresh so a replayed old
// token is detectable.
type Session struct {
	ID          string // refresh token jti
	SessionID   string // stable across rotation within one authentication
	UserID      string
	TokenHash   string // fingerprint of the refresh token (base64url SHA-256)
	MFAVerified bool
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the session can still mint tokens.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
