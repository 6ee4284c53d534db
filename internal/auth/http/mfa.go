package http

import (
	"net/http"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
)

// MFAHandler handles TOTP enrollment and backup code management for an
// already authenticated user. Challenge verification during login lives
// on AuthHandler because it runs without an access token.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleSetupInitiate handles POST /v1/mfa/setup/initiate. Returns the
// secret and provisioning QR code; nothing is enabled yet.
func (h *MFAHandler) HandleSetupInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enroll, err := h.MFAService.InitiateSetup(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MFASetupResponse{
		Secret:     enroll.Secret,
		OTPAuthURL: enroll.OTPAuthURL,
		QRCodePNG:  enroll.QRCodePNG,
		Issuer:     enroll.Issuer,
		Account:    enroll.Account,
	})
}

// HandleSetupComplete handles POST /v1/mfa/setup/complete. A correct live
// code flips MFA on and returns the backup codes, shown exactly once.
func (h *MFAHandler) HandleSetupComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MFASetupCompleteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	codes, err := h.MFAService.CompleteSetup(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{
		BackupCodes: codes,
	})
}

// HandleDisable handles DELETE /v1/mfa. Requires the current password and
// a live code.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MFADisableRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.MFAService.Disable(ctx, userID, req.Password, req.Code); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes. Old codes
// stop working immediately.
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.RegenerateBackupCodesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{
		BackupCodes: codes,
	})
}
