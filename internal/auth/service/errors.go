package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown identifiers, wrong passwords
	// and inactive accounts alike, so responses cannot be used to probe
	// which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned on refresh when the account was
	// deactivated after the session was established. Interactive login
	// collapses this into ErrInvalidCredentials instead.
	ErrAccountInactive = errors.New("account is deactivated")

	// ErrRateLimited means the attempt budget for this key is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrChallengeNotFound covers unknown, expired and already-consumed
	// MFA challenge tokens.
	ErrChallengeNotFound = errors.New("mfa challenge not found or expired")

	// ErrInvalidMFACode means the TOTP or backup code did not verify.
	ErrInvalidMFACode = errors.New("invalid mfa code")

	// ErrTooManyMFAAttempts means the challenge burned its attempt budget
	// and has been invalidated. The client must log in again.
	ErrTooManyMFAAttempts = errors.New("too many mfa attempts")

	ErrMFANotEnabled      = errors.New("mfa not enabled for this user")
	ErrMFAAlreadyEnabled  = errors.New("mfa already enabled for this user")
	ErrMFASetupNotStarted = errors.New("mfa setup has not been initiated")

	// ErrInvalidToken covers malformed, expired and unknown tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrSessionRevoked means the refresh token's session was revoked,
	// including the replay case where an already-rotated token comes back.
	ErrSessionRevoked = errors.New("session revoked")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already taken")

	// ErrForbidden means the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	ErrValidation = errors.New("validation failed")
)

// RateLimitedError carries the retry hint alongside ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// ValidationError carries a field-level message alongside ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
