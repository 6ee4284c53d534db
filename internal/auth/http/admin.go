package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/pkg/authsdk"
	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// AdminHandler handles the user management surface. Route-level middleware
// already requires at least the admin role; per-target rules (who may
// touch whom) live in the service.
type AdminHandler struct {
	AdminService *service.AdminService
	AuditService *service.AuditService
}

// actorRole resolves the caller's role from the authenticated context.
func actorRole(r *http.Request) (domain.Role, bool) {
	role, err := domain.ParseRole(httpx.RoleFromCtx(r.Context()))
	if err != nil {
		return 0, false
	}
	return role, true
}

// HandleListUsers handles GET /v1/admin/users.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.AdminService.ListUsers(ctx, limit, offset)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	out := authsdk.UserListResponse{
		Users:  make([]authsdk.UserResponse, 0, len(users)),
		Limit:  limit,
		Offset: offset,
	}
	for _, u := range users {
		out.Users = append(out.Users, toUserResponse(u, 0))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGetUser handles GET /v1/admin/users/{id}.
func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.AdminService.GetUser(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user, 0))
}

// HandleSetRole handles PATCH /v1/admin/users/{id}/role.
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorRole(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.SetRoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	targetID := r.PathValue("id")
	if err := h.AdminService.SetRole(ctx, actor, targetID, role); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	slogx.FromContext(ctx).Info("role changed",
		"target_id", targetID, "role", role.String())
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSetActive handles PATCH /v1/admin/users/{id}/active. Deactivation
// revokes every session the target holds.
func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorRole(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.SetActiveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	targetID := r.PathValue("id")
	if err := h.AdminService.SetActive(ctx, actor, targetID, req.Active); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	slogx.FromContext(ctx).Info("active flag changed",
		"target_id", targetID, "active", req.Active)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSetVerified handles PATCH /v1/admin/users/{id}/verified.
func (h *AdminHandler) HandleSetVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorRole(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.SetVerifiedRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	targetID := r.PathValue("id")
	if err := h.AdminService.SetVerified(ctx, actor, targetID, req.Verified); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleResetMFA handles DELETE /v1/admin/users/{id}/mfa: a forced reset
// for users locked out of their authenticator.
func (h *AdminHandler) HandleResetMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorRole(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	targetID := r.PathValue("id")
	if err := h.AdminService.ResetMFA(ctx, actor, targetID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	slogx.FromContext(ctx).Info("mfa reset", "target_id", targetID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleDeleteUser handles DELETE /v1/admin/users/{id}. The row and its
// dependents are gone for good; the audit trail is kept.
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorRole(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	targetID := r.PathValue("id")
	if err := h.AdminService.DeleteUser(ctx, actor, targetID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	slogx.FromContext(ctx).Info("user deleted", "target_id", targetID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListAudit handles GET /v1/admin/users/{id}/audit.
func (h *AdminHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.AuditService.ListForUser(ctx, r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	out := authsdk.AuditListResponse{
		Events: make([]authsdk.AuditEventResponse, 0, len(events)),
	}
	for _, ev := range events {
		out.Events = append(out.Events, authsdk.AuditEventResponse{
			ID:        ev.ID,
			Kind:      ev.Kind,
			UserID:    ev.UserID,
			RemoteIP:  ev.RemoteIP,
			Detail:    ev.Detail,
			CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
