package http

import (
	"net/http"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// UserInfoHandler serves the authenticated self-service surface.
type UserInfoHandler struct {
	UserService  *service.UserService
	MFAService   *service.MFAService
	TokenService *service.TokenService
}

// HandleGet handles GET /v1/userinfo.
func (h *UserInfoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.UserService.Get(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	remaining := 0
	if user.MFAOn() {
		remaining, err = h.MFAService.BackupCodesRemaining(ctx, userID)
		if err != nil {
			log.Warn("backup code count failed", "user_id", userID, "err", err)
			remaining = 0
		}
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user, remaining))
}

// HandleListSessions handles GET /v1/sessions: the caller's active
// sessions, one per device that completed a login.
func (h *UserInfoHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	sessions, err := h.TokenService.ListSessions(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	out := authsdk.SessionListResponse{
		Sessions: make([]authsdk.SessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authsdk.SessionResponse{
			SessionID:   s.SessionID,
			MFAVerified: s.MFAVerified,
			CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:   s.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevokeSessions handles DELETE /v1/sessions: log out everywhere.
func (h *UserInfoHandler) HandleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.TokenService.RevokeAllForUser(ctx, userID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toUserResponse(user domain.User, backupCodesRemaining int) authsdk.UserResponse {
	resp := authsdk.UserResponse{
		ID:                   user.ID,
		Username:             user.Username,
		Email:                user.Email,
		Role:                 user.Role.String(),
		IsActive:             user.IsActive,
		IsVerified:           user.IsVerified,
		MFAEnabled:           user.MFAOn(),
		BackupCodesRemaining: backupCodesRemaining,
		CreatedAt:            user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		resp.LastLoginAt = user.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toTokenResponse(pair domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}
