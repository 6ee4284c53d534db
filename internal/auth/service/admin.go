package service

import (
	"context"
	"errors"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
)

// AdminService covers privileged user management. Role rules: an actor may
// only manage users they outrank, and may only assign roles at or below
// their own.
type AdminService struct {
	Store  store.Store
	Tokens *TokenService
	Audit  *AuditService
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.Users().ListUsers(ctx, limit, offset)
}

func (s *AdminService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SetRole changes a user's role. Existing sessions keep their issued role
// until the next refresh, which re-reads the user record.
func (s *AdminService) SetRole(ctx context.Context, actor domain.Role, targetID string, role domain.Role) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Message: "is not a known role"}
	}

	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.checkActor(actor, target); err != nil {
		return err
	}
	if role > actor {
		// Nobody hands out a role above their own.
		return ErrForbidden
	}

	if err := s.Store.Users().UpdateRole(ctx, targetID, role); err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditUserUpdatedByAdmin, targetID, "",
		"role set to "+role.String())
	return nil
}

// SetActive toggles an account. Deactivation revokes all sessions so the
// cutoff is immediate, not deferred to token expiry.
func (s *AdminService) SetActive(ctx context.Context, actor domain.Role, targetID string, active bool) error {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.checkActor(actor, target); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetActive(ctx, targetID, active); err != nil {
			return err
		}
		if !active {
			return tx.Sessions().RevokeAllForUser(ctx, targetID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	detail := "deactivated"
	if active {
		detail = "activated"
	}
	s.Audit.Emit(ctx, domain.AuditUserUpdatedByAdmin, targetID, "", detail)
	return nil
}

// SetVerified marks an account's email as verified.
func (s *AdminService) SetVerified(ctx context.Context, actor domain.Role, targetID string, verified bool) error {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.checkActor(actor, target); err != nil {
		return err
	}

	if err := s.Store.Users().SetVerified(ctx, targetID, verified); err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditUserUpdatedByAdmin, targetID, "", "verified flag changed")
	return nil
}

// ResetMFA strips a user's second factor entirely, for lockout recovery.
// The user can log in with password alone afterwards and re-enrol.
func (s *AdminService) ResetMFA(ctx context.Context, actor domain.Role, targetID string) error {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.checkActor(actor, target); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFASecrets().Delete(ctx, targetID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.BackupCodes().DeleteForUser(ctx, targetID); err != nil {
			return err
		}
		if err := tx.MFAChallenges().DeleteForUser(ctx, targetID); err != nil {
			return err
		}
		return tx.Users().SetMFAEnabled(ctx, targetID, nil)
	})
	if err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditUserUpdatedByAdmin, targetID, "", "mfa reset")
	return nil
}

// DeleteUser removes an account for good. Sessions, secrets, backup codes
// and pending challenges cascade with the row; audit history stays.
func (s *AdminService) DeleteUser(ctx context.Context, actor domain.Role, targetID string) error {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.checkActor(actor, target); err != nil {
		return err
	}

	if err := s.Store.Users().DeleteUser(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.Audit.Emit(ctx, domain.AuditUserDeletedByAdmin, targetID, "",
		"username "+target.Username)
	return nil
}

// checkActor enforces the outranking rule. Super admins may manage each
// other; that is the ceiling of the hierarchy.
func (s *AdminService) checkActor(actor domain.Role, target domain.User) error {
	if target.Role >= actor && target.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}
	if target.Role == domain.RoleSuperAdmin && actor != domain.RoleSuperAdmin {
		return ErrForbidden
	}
	return nil
}
