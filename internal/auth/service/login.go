package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/ratelimit"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

const defaultChallengeTTL = 5 * time.Minute

// LoginService orchestrates the password stage of authentication. A login
// either completes with a token pair, or parks at a pending MFA challenge
// when the account has a second factor enabled.
type LoginService struct {
	Store        store.Store
	Tokens       *TokenService
	Limiter      ratelimit.Limiter
	Audit        *AuditService
	ChallengeTTL time.Duration
}

// LoginResult holds exactly one of Tokens or Challenge.
type LoginResult struct {
	Tokens    *domain.TokenPair
	Challenge *domain.MFAChallengeResponse
}

func (s *LoginService) challengeTTL() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return defaultChallengeTTL
}

// Login authenticates an identifier (username or email) and password.
func (s *LoginService) Login(ctx context.Context, identifier, password, remoteIP string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	// Budget failures per identifier, not per IP: distributed guessing
	// against one account must hit the same counter.
	limitKey := "login:" + strings.ToLower(identifier)
	ok, retryAfter, err := s.Limiter.Allow(ctx, limitKey, time.Now())
	if err != nil {
		// A broken limiter backend should not take logins down with it.
		slogx.FromContext(ctx).Error("login limiter failed", "err", err)
	} else if !ok {
		return LoginResult{}, &RateLimitedError{RetryAfter: retryAfter}
	}

	user, err := s.Store.Users().GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same argon2 work a real verification would, so
			// unknown identifiers are not distinguishable by timing.
			cryptox.DummyVerify()
			s.Audit.Emit(ctx, domain.AuditLoginFailed, "", remoteIP,
				"unknown identifier")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			s.Audit.Emit(ctx, domain.AuditLoginFailed, user.ID, remoteIP,
				"wrong password")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !user.IsActive {
		// Same error as a wrong password; a disabled account should not
		// confirm that its credentials were right.
		s.Audit.Emit(ctx, domain.AuditLoginFailed, user.ID, remoteIP,
			"inactive account")
		return LoginResult{}, ErrInvalidCredentials
	}

	// The password stage passed; earlier failures stop counting.
	if err := s.Limiter.Reset(ctx, limitKey); err != nil {
		slogx.FromContext(ctx).Warn("login limiter reset failed", "err", err)
	}

	if user.MFAOn() {
		return s.issueChallenge(ctx, user, remoteIP)
	}

	now := time.Now().UTC()
	if err := s.Store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		slogx.FromContext(ctx).Warn("last login touch failed", "user_id", user.ID, "err", err)
	}

	pair, err := s.Tokens.IssuePair(ctx, user, "", false)
	if err != nil {
		return LoginResult{}, err
	}

	s.Audit.Emit(ctx, domain.AuditLoginSucceeded, user.ID, remoteIP, "")
	return LoginResult{Tokens: &pair}, nil
}

func (s *LoginService) issueChallenge(ctx context.Context, user domain.User, remoteIP string) (LoginResult, error) {
	now := time.Now().UTC()
	ttl := s.challengeTTL()

	challenge := domain.MFAChallenge{
		ID:        idx.MustNew().String(),
		UserID:    user.ID,
		SessionID: idx.MustNew().String(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.Store.MFAChallenges().Create(ctx, challenge); err != nil {
		return LoginResult{}, err
	}

	s.Audit.Emit(ctx, domain.AuditMFAChallengeIssued, user.ID, remoteIP, "")

	return LoginResult{Challenge: &domain.MFAChallengeResponse{
		MFARequired: true,
		MFAToken:    challenge.ID,
		Methods:     []string{"totp", "backup_codes"},
		ExpiresIn:   int64(ttl.Seconds()),
	}}, nil
}
