package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token TTL constants.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived so a stolen token has a bounded blast radius.
	DefaultAccessTokenTTL = 30 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token use values carried in the "token_use" claim. Verifiers reject a
// refresh token presented where an access token is expected and vice versa.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// Claims are the token claims shared across services. Keep changes additive
// to preserve compatibility with resource servers verifying offline.
type Claims struct {
	jwt.RegisteredClaims

	// TokenUse distinguishes access tokens from refresh tokens.
	TokenUse string `json:"token_use,omitempty"`

	// SID is the session id. It persists across refresh rotation, so a
	// logout can revoke everything minted under one authentication.
	SID string `json:"sid,omitempty"`

	// Role is the user's role name at issuance time ("client", "admin",
	// "super_admin"). Services must still re-check against the user record
	// for privileged mutations.
	Role string `json:"role,omitempty"`

	// Username for the authenticated user.
	Username string `json:"username,omitempty"`

	// MFAVerified is true when the session completed a second factor.
	MFAVerified bool `json:"mfa_verified,omitempty"`
}

// NewAccessClaims builds minimally-correct access token claims.
func NewAccessClaims(
	subject, sid string,
	role, username string,
	mfaVerified bool,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenUse:    TokenUseAccess,
		SID:         sid,
		Role:        role,
		Username:    username,
		MFAVerified: mfaVerified,
	}
}

// NewRefreshClaims builds refresh token claims. The jti doubles as the
// session-registry key, so it must be unique per token.
func NewRefreshClaims(
	subject, sid, jti string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		TokenUse: TokenUseRefresh,
		SID:      sid,
	}
}

// NewJTI returns a unique identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateTokenUse checks the token was minted for the expected purpose.
func (c *Claims) ValidateTokenUse(expected string) error {
	if c.TokenUse != expected {
		return ErrTokenUse
	}
	return nil
}
