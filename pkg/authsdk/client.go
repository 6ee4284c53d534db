package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Go client for the auth API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "https://auth.example.com".
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// LoginOutcome holds exactly one of Tokens or MFARequired.
type LoginOutcome struct {
	Tokens      *TokenResponse
	MFARequired *MFARequiredResponse
}

// Login authenticates and returns either tokens or a pending MFA challenge.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginOutcome, error) {
	var raw json.RawMessage
	err := c.post(ctx, "/v1/auth/login", "", LoginRequest{
		Identifier: identifier,
		Password:   password,
	}, &raw)
	if err != nil {
		return LoginOutcome{}, err
	}

	// The login endpoint returns one of two shapes; sniff for the
	// challenge marker.
	var probe struct {
		MFARequired bool `json:"mfa_required"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return LoginOutcome{}, fmt.Errorf("authsdk: decode login response: %w", err)
	}

	if probe.MFARequired {
		var challenge MFARequiredResponse
		if err := json.Unmarshal(raw, &challenge); err != nil {
			return LoginOutcome{}, fmt.Errorf("authsdk: decode challenge: %w", err)
		}
		return LoginOutcome{MFARequired: &challenge}, nil
	}

	var tokens TokenResponse
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return LoginOutcome{}, fmt.Errorf("authsdk: decode tokens: %w", err)
	}
	return LoginOutcome{Tokens: &tokens}, nil
}

// VerifyMFA completes a pending challenge with a TOTP or backup code.
func (c *Client) VerifyMFA(ctx context.Context, mfaToken, code string) (*TokenResponse, error) {
	var tokens TokenResponse
	err := c.post(ctx, "/v1/auth/mfa/verify", "", MFAVerifyRequest{
		MFAToken: mfaToken,
		Code:     code,
	}, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh rotates a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var tokens TokenResponse
	err := c.post(ctx, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken}, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout revokes the session behind a refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.post(ctx, "/v1/auth/logout", "", LogoutRequest{RefreshToken: refreshToken}, nil)
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*UserResponse, error) {
	var user UserResponse
	err := c.post(ctx, "/v1/auth/signup", "", SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MFASetupInitiate starts TOTP enrollment for the authenticated user.
func (c *Client) MFASetupInitiate(ctx context.Context, accessToken string) (*MFASetupResponse, error) {
	var setup MFASetupResponse
	err := c.post(ctx, "/v1/mfa/setup/initiate", accessToken, struct{}{}, &setup)
	if err != nil {
		return nil, err
	}
	return &setup, nil
}

// MFASetupComplete confirms the pending secret with a live code and
// returns the backup codes.
func (c *Client) MFASetupComplete(ctx context.Context, accessToken, code string) (*BackupCodesResponse, error) {
	var backup BackupCodesResponse
	err := c.post(ctx, "/v1/mfa/setup/complete", accessToken,
		MFASetupCompleteRequest{Code: code}, &backup)
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

// RegenerateBackupCodes replaces the backup code set.
func (c *Client) RegenerateBackupCodes(ctx context.Context, accessToken, code string) (*BackupCodesResponse, error) {
	var backup BackupCodesResponse
	err := c.post(ctx, "/v1/mfa/backup-codes", accessToken,
		RegenerateBackupCodesRequest{Code: code}, &backup)
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

// ChangePassword swaps the account password. Every session is revoked on
// success. code is a current TOTP or backup code, required when MFA is
// enabled and ignored otherwise.
func (c *Client) ChangePassword(ctx context.Context, accessToken, current, next, code string) error {
	return c.post(ctx, "/v1/auth/password", accessToken, ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
		Code:            code,
	}, nil)
}

// Userinfo returns the account behind an access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (*UserResponse, error) {
	var user UserResponse
	if err := c.get(ctx, "/v1/userinfo", accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) post(ctx context.Context, path, accessToken string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("authsdk: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, accessToken, out)
}

func (c *Client) get(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, accessToken, out)
}

func (c *Client) do(req *http.Request, accessToken string, out any) error {
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = ErrorCodeServerError
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
