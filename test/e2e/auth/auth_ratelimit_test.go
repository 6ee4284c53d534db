package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
)

// TestRateLimitLoginEndpoint verifies the login endpoint enforces the
// strict per-IP profile (5 requests per minute) on top of the
// per-identifier counters inside the service.
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	// Spread attempts over distinct identifiers so only the IP budget is
	// in play.
	identifiers := []string{"u1", "u2", "u3", "u4", "u5", "u6"}

	var lastErr error
	for i, identifier := range identifiers {
		_, err := client.Login(ctx, identifier, "wrongpass")
		if i < 5 {
			require.Error(t, err, "unknown credentials should fail")
			requireAPIError(t, err, authsdk.ErrorCodeInvalidCredentials)
		} else {
			lastErr = err
		}
	}

	require.Error(t, lastErr)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, lastErr, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode,
		"sixth request should be rate limited")
	t.Logf("login endpoint rate limited after 5 requests")
}

// TestRateLimitPerIdentifier verifies the per-identifier failed-login
// budget fires even when the IP budget is relaxed, and that a successful
// login resets it.
func TestRateLimitPerIdentifier(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	signupUser(t, client, "victim", "victim@example.com")

	// Burn the identifier's budget with wrong passwords.
	for range 5 {
		_, err := client.Login(ctx, "victim", "wrongpass")
		requireAPIError(t, err, authsdk.ErrorCodeInvalidCredentials)
	}

	// Correct credentials are refused while the budget is exhausted.
	_, err := client.Login(ctx, "victim", userPassword)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)

	// Other identifiers are unaffected.
	signupUser(t, client, "bystander", "bystander@example.com")
	loginTokens(t, client, "bystander", userPassword)
}
