// Package authsdk holds the wire types shared by the auth service and its
// Go clients, plus a small HTTP client for the API.
package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
)

// Error codes returned by the API.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountInactive    = "account_inactive"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeSessionRevoked     = "session_revoked"
	ErrorCodeMFARequired        = "mfa_required"
	ErrorCodeInvalidMFACode     = "invalid_mfa_code"
	ErrorCodeChallengeNotFound  = "challenge_not_found"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeMFANotEnabled      = "mfa_not_enabled"
	ErrorCodeMFAAlreadyEnabled  = "mfa_already_enabled"
	ErrorCodeMFASetupRequired   = "mfa_setup_required"
	ErrorCodeUserExists         = "user_exists"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeUnavailable        = "temporarily_unavailable"
	ErrorCodeValidation         = "validation_error"
	ErrorCodeServerError        = "server_error"
)

// APIError is the error envelope every endpoint returns. It implements the
// error interface so the SDK client can surface it directly.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteError writes the error to an HTTP response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   e.Code,
		"message": e.Message,
	})
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidRequest,
		Message:    "the request is malformed or missing required fields",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCredentials,
		Message:    "invalid credentials",
	}

	ErrAccountInactive = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeAccountInactive,
		Message:    "account is deactivated",
	}

	ErrInvalidToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidToken,
		Message:    "invalid or expired token",
	}

	ErrSessionRevoked = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeSessionRevoked,
		Message:    "session has been revoked, log in again",
	}

	ErrInvalidMFACode = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidMFACode,
		Message:    "the provided code is not valid",
	}

	ErrChallengeNotFound = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeChallengeNotFound,
		Message:    "mfa challenge not found or expired, log in again",
	}

	ErrTooManyAttempts = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeTooManyAttempts,
		Message:    "too many attempts, log in again",
	}

	ErrMFANotEnabled = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeMFANotEnabled,
		Message:    "mfa is not enabled for this account",
	}

	ErrMFAAlreadyEnabled = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeMFAAlreadyEnabled,
		Message:    "mfa is already enabled for this account",
	}

	ErrMFASetupRequired = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeMFASetupRequired,
		Message:    "initiate mfa setup first",
	}

	ErrUserExists = &APIError{
		StatusCode: http.StatusConflict,
		Code:       ErrorCodeUserExists,
		Message:    "username or email already taken",
	}

	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
		Message:    "resource not found",
	}

	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeForbidden,
		Message:    "insufficient privileges",
	}

	ErrUnavailable = &APIError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       ErrorCodeUnavailable,
		Message:    "service temporarily unavailable, retry shortly",
	}

	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeServerError,
		Message:    "internal server error",
	}
)
