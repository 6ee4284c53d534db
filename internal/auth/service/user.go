package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/ratelimit"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

const minPasswordLength = 8

// Usernames must not look like emails, so identifier login stays
// unambiguous.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService handles self-service account operations: signup, profile and
// password changes.
type UserService struct {
	Store   store.Store
	Tokens  *TokenService
	MFA     *MFAService
	Limiter ratelimit.Limiter
	Audit   *AuditService
}

// Signup registers a new account. New accounts start as unverified clients.
func (s *UserService) Signup(ctx context.Context, username, email, password, remoteIP string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if !usernamePattern.MatchString(username) {
		return domain.User{}, &ValidationError{Field: "username",
			Message: "must be 3-50 characters of letters, digits or '_'"}
	}
	if !emailPattern.MatchString(email) {
		return domain.User{}, &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if len(password) < minPasswordLength {
		return domain.User{}, &ValidationError{Field: "password",
			Message: "must be at least 8 characters"}
	}

	if s.Limiter != nil && remoteIP != "" {
		ok, retryAfter, err := s.Limiter.Allow(ctx, "signup:"+remoteIP, time.Now())
		if err != nil {
			slogx.FromContext(ctx).Error("signup limiter failed", "err", err)
		} else if !ok {
			return domain.User{}, &RateLimitedError{RetryAfter: retryAfter}
		}
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.MustNew().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleClient,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	s.Audit.Emit(ctx, domain.AuditUserSignedUp, user.ID, remoteIP, "")
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ChangePassword re-proves the current password, swaps the hash and revokes
// every session. When MFA is on, a current TOTP or backup code is required
// too, so a stolen session plus a shoulder-surfed password is not enough.
// All devices must log in again with the new password.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, code string) error {
	if len(newPassword) < minPasswordLength {
		return &ValidationError{Field: "new_password",
			Message: "must be at least 8 characters"}
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	// Password first: a wrong password fails before the code is looked
	// at, so a correct backup code is not spent on the attempt.
	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if user.MFAOn() {
		if _, err := s.MFA.verifyCode(ctx, userID, code, time.Now().UTC()); err != nil {
			return err
		}
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return tx.Sessions().RevokeAllForUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditPasswordChanged, userID, "", "")
	return nil
}
