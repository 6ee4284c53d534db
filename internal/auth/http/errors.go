// Package http exposes the auth service over HTTP. Handlers are thin:
// they decode a request, call one service method and translate the
// outcome into the shared wire types.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// writeServiceError maps service-layer sentinels onto the API error
// envelope. Anything unrecognised is logged and collapsed to a 500 so
// internals never leak to the client.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var rl *service.RateLimitedError
	if errors.As(err, &rl) {
		seconds := int(rl.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		apiErr := &authsdk.APIError{
			StatusCode: http.StatusTooManyRequests,
			Code:       authsdk.ErrorCodeRateLimited,
			Message:    "too many attempts, slow down",
		}
		apiErr.WriteError(w)
		return
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		apiErr := &authsdk.APIError{
			StatusCode: http.StatusBadRequest,
			Code:       authsdk.ErrorCodeValidation,
			Message:    ve.Field + " " + ve.Message,
		}
		apiErr.WriteError(w)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrAccountInactive):
		authsdk.ErrAccountInactive.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrSessionRevoked):
		authsdk.ErrSessionRevoked.WriteError(w)
	case errors.Is(err, service.ErrChallengeNotFound):
		authsdk.ErrChallengeNotFound.WriteError(w)
	case errors.Is(err, service.ErrTooManyMFAAttempts):
		authsdk.ErrTooManyAttempts.WriteError(w)
	case errors.Is(err, service.ErrInvalidMFACode):
		authsdk.ErrInvalidMFACode.WriteError(w)
	case errors.Is(err, service.ErrMFANotEnabled):
		authsdk.ErrMFANotEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		authsdk.ErrMFAAlreadyEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFASetupNotStarted):
		authsdk.ErrMFASetupRequired.WriteError(w)
	case errors.Is(err, service.ErrUserExists):
		authsdk.ErrUserExists.WriteError(w)
	case errors.Is(err, service.ErrUserNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		authsdk.ErrForbidden.WriteError(w)
	case errors.Is(err, context.DeadlineExceeded):
		// The request-level timeout fired before the store answered.
		slogx.FromContext(ctx).Warn("request deadline exceeded", "err", err)
		authsdk.ErrUnavailable.WriteError(w)
	default:
		slogx.FromContext(ctx).Error("unhandled service error", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
