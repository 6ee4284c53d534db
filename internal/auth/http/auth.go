package http

import (
	"net/http"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// AuthHandler handles the credential endpoints: signup, login, MFA
// verification, refresh, logout and password changes.
type AuthHandler struct {
	LoginService *service.LoginService
	TokenService *service.TokenService
	UserService  *service.UserService
	MFAService   *service.MFAService
}

// HandleSignup handles POST /v1/auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.Signup(ctx, req.Username, req.Email, req.Password,
		httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user, 0))
}

// HandleLogin handles POST /v1/auth/login. The response is either a token
// pair or an mfa_required envelope holding a challenge token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.LoginService.Login(ctx, req.Identifier, req.Password,
		httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	if res.Challenge != nil {
		httpx.WriteJSON(w, http.StatusOK, authsdk.MFARequiredResponse{
			MFARequired: true,
			MFAToken:    res.Challenge.MFAToken,
			Methods:     res.Challenge.Methods,
			ExpiresIn:   res.Challenge.ExpiresIn,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(*res.Tokens))
}

// HandleMFAVerify handles POST /v1/auth/mfa/verify.
func (h *AuthHandler) HandleMFAVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.MFAVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.MFAService.VerifyChallenge(ctx, req.MFAToken, req.Code,
		httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleRefresh handles POST /v1/auth/refresh. The presented refresh token
// is rotated; presenting it again revokes the whole session.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout. Revocation is idempotent;
// a token that is already dead still yields 200.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LogoutRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.Logout(ctx, req.RefreshToken); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleChangePassword handles POST /v1/auth/password. All sessions are
// revoked on success; the client must log in again.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.UserService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword, req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
