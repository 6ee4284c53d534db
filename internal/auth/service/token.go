package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// TokenService mints, refreshes and revokes token pairs. Refresh tokens are
// signed JWTs whose jti doubles as the session-registry key; every refresh
// rotates the jti while the session id stays stable for the lineage.
type TokenService struct {
	Store      store.Store
	Keys       *jwtx.KeyManager
	Audit      *AuditService
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// IssuePair mints a fresh token pair for a completed authentication.
// sessionID may be empty for a brand new session.
func (s *TokenService) IssuePair(ctx context.Context, user domain.User, sessionID string, mfaVerified bool) (domain.TokenPair, error) {
	return s.mintPair(ctx, s.Store, user, sessionID, mfaVerified)
}

// mintPair signs both tokens and records the session. It takes the store as
// a parameter so refresh rotation can run it inside a transaction.
func (s *TokenService) mintPair(ctx context.Context, st store.Store, user domain.User, sessionID string, mfaVerified bool) (domain.TokenPair, error) {
	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = idx.MustNew().String()
	}
	jti := jwtx.NewJTI()

	signer := s.Keys.GetSigner()
	issuer := s.Keys.Issuer()

	accessClaims := jwtx.NewAccessClaims(
		user.ID, sessionID,
		user.Role.String(), user.Username,
		mfaVerified,
		s.accessTTL(), issuer, now,
	)
	accessToken, err := signer.Sign(accessClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwtx.NewRefreshClaims(user.ID, sessionID, jti,
		s.refreshTTL(), issuer, now)
	refreshToken, err := signer.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	session := domain.Session{
		ID:          jti,
		SessionID:   sessionID,
		UserID:      user.ID,
		TokenHash:   cryptox.FingerprintToken(refreshToken),
		MFAVerified: mfaVerified,
		ExpiresAt:   now.Add(s.refreshTTL()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := st.Sessions().Create(ctx, session); err != nil {
		return domain.TokenPair{}, fmt.Errorf("record session: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL().Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is minted atomically. Presenting an already-rotated token revokes the
// whole session lineage, since it means the token leaked.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Keys.Verifier().Verify(refreshToken, jwtx.TokenUseRefresh)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidToken
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := tx.Sessions().GetByID(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		now := time.Now().UTC()
		if sess.Revoked {
			// Replay of a rotated or revoked token. Kill everything
			// descended from this authentication.
			if err := tx.Sessions().RevokeBySessionID(ctx, sess.SessionID); err != nil {
				return err
			}
			slogx.FromContext(ctx).Warn("refresh token replay detected",
				"user_id", sess.UserID, "session_id", sess.SessionID)
			s.Audit.Emit(ctx, domain.AuditTokenReplayDetected, sess.UserID, "",
				"session "+sess.SessionID)
			return ErrSessionRevoked
		}
		if now.After(sess.ExpiresAt) {
			return ErrInvalidToken
		}
		if sess.TokenHash != cryptox.FingerprintToken(refreshToken) {
			return ErrInvalidToken
		}

		user, err := tx.Users().GetUserByID(ctx, sess.UserID)
		if err != nil {
			return ErrInvalidToken
		}
		if !user.IsActive {
			// Deactivation cuts off refresh even before housekeeping
			// revokes the sessions.
			if err := tx.Sessions().RevokeBySessionID(ctx, sess.SessionID); err != nil {
				return err
			}
			return ErrAccountInactive
		}

		if err := tx.Sessions().Revoke(ctx, sess.ID); err != nil {
			return err
		}

		// Role changes picked up here: claims carry the CURRENT role.
		pair, err = s.mintPair(ctx, tx, user, sess.SessionID, sess.MFAVerified)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Emit(ctx, domain.AuditTokenRefreshed, claims.Subject, "", "")
	return pair, nil
}

// Logout revokes the whole session lineage for the presented refresh token.
// Revoking an already-revoked session is not an error.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.Keys.Verifier().Verify(refreshToken, jwtx.TokenUseRefresh)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.Store.Sessions().RevokeBySessionID(ctx, claims.SID); err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditLogout, claims.Subject, "", "session "+claims.SID)
	return nil
}

// RevokeAllForUser cuts off every session the user holds.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.Sessions().RevokeAllForUser(ctx, userID)
}

// ListSessions returns the user's active sessions.
func (s *TokenService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveForUser(ctx, userID, time.Now().UTC())
}
