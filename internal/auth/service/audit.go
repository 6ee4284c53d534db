package service

import (
	"context"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// AuditService records security-relevant events. Writes are best-effort: an
// audit failure must never fail the flow that triggered it, so errors are
// logged and swallowed.
type AuditService struct {
	Store store.Store
}

func (s *AuditService) Emit(ctx context.Context, kind, userID, remoteIP, detail string) {
	if s == nil || s.Store == nil {
		return
	}

	event := domain.AuditEvent{
		ID:        idx.MustNew().String(),
		Kind:      kind,
		UserID:    userID,
		RemoteIP:  remoteIP,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Store.AuditEvents().Append(ctx, event); err != nil {
		slogx.FromContext(ctx).Error("audit append failed",
			"kind", kind, "user_id", userID, "err", err)
	}
}

// ListForUser exposes the trail for the admin surface.
func (s *AuditService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.AuditEvents().ListForUser(ctx, userID, limit)
}
