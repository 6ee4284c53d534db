package auth_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, account provisioning and MFA helpers.
 */

const (
	testImageName = "shelfkeeper-auth-test:latest"

	adminUsername = "admin"
	adminEmail    = "admin@shelfkeeper.test"
	adminPassword = "Admin123!secret"

	userPassword = "User123!secret"
)

// TestMain builds the Docker image once before all tests and cleans it up
// after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building auth service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up auth service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run()
}

func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_DATABASE_FILE":  "/tmp/auth.db",
		"AUTH_PEPPER_FILE":    "/tmp/pepper",
		"AUTH_ISSUER":         "shelfkeeper-auth",
		"AUTH_ALGORITHM":      "EdDSA",
		"AUTH_NUM_KEYS":       "1",
		"AUTH_ADMIN_USERNAME": adminUsername,
		"AUTH_ADMIN_EMAIL":    adminEmail,
		"AUTH_ADMIN_PASSWORD": adminPassword,
		"ENV":                 "test",
		"LOG_LEVEL":           "info",
		"LOG_FORMAT":          "json",
	}
}

// setupAuthContainer starts the service with relaxed rate limits so flow
// tests never trip them. Rate limiting itself is exercised by
// setupAuthContainerWithDefaultRateLimits.
func setupAuthContainer(t *testing.T) (string, func()) {
	t.Helper()

	env := baseEnv()
	env["RATELIMIT_STRICT_REQUESTS"] = "1000"
	env["RATELIMIT_STRICT_WINDOW_SEC"] = "60"
	env["RATELIMIT_STRICT_BURST"] = "1000"
	env["RATELIMIT_MODERATE_REQUESTS"] = "1000"
	env["RATELIMIT_MODERATE_BURST"] = "1000"

	return startContainer(t, env)
}

// setupAuthContainerWithDefaultRateLimits starts the service with the
// production rate limit profiles.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// signupUser registers an account through the public endpoint.
func signupUser(t *testing.T, client *authsdk.Client, username, email string) *authsdk.UserResponse {
	t.Helper()
	user, err := client.Signup(t.Context(), username, email, userPassword)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	return user
}

// loginTokens authenticates an account with no second factor enabled.
func loginTokens(t *testing.T, client *authsdk.Client, identifier, password string) *authsdk.TokenResponse {
	t.Helper()
	outcome, err := client.Login(t.Context(), identifier, password)
	require.NoError(t, err)
	require.NotNil(t, outcome.Tokens, "expected a direct token response")
	return outcome.Tokens
}

// enrollMFA walks the setup state machine and returns the TOTP secret and
// backup codes.
func enrollMFA(t *testing.T, client *authsdk.Client, accessToken string) (string, []string) {
	t.Helper()
	ctx := t.Context()

	setup, err := client.MFASetupInitiate(ctx, accessToken)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.NotEmpty(t, setup.QRCodePNG)

	backup, err := client.MFASetupComplete(ctx, accessToken, generateTOTP(t, setup.Secret))
	require.NoError(t, err)
	require.Len(t, backup.BackupCodes, 10)

	return setup.Secret, backup.BackupCodes
}

// generateTOTP produces the current 6-digit code for a secret.
func generateTOTP(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// requireAPIError asserts an SDK error carries the expected API error code.
func requireAPIError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code)
}
