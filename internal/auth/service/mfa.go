package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

const (
	backupCodeCount    = 10
	defaultMaxAttempts = 5
	totpPeriod         = 30
	qrImageSize        = 256
)

// MFAService owns TOTP enrolment, backup codes and challenge verification.
// Enrolment is a two-step state machine: InitiateSetup stores a pending
// secret, CompleteSetup proves possession and flips it live.
type MFAService struct {
	Store       store.Store
	Tokens      *TokenService
	Audit       *AuditService
	Issuer      string
	MaxAttempts int
}

func (s *MFAService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return defaultMaxAttempts
}

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      1, // accept the adjacent step either side for clock drift
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// InitiateSetup generates a pending TOTP secret and provisioning material.
// Nothing is enforced at login until CompleteSetup confirms a code.
func (s *MFAService) InitiateSetup(ctx context.Context, userID string) (domain.MFAEnrollResponse, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAEnrollResponse{}, ErrUserNotFound
		}
		return domain.MFAEnrollResponse{}, err
	}
	if user.MFAOn() {
		return domain.MFAEnrollResponse{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollResponse{}, fmt.Errorf("generate totp key: %w", err)
	}

	qr, err := renderQRCode(key)
	if err != nil {
		return domain.MFAEnrollResponse{}, err
	}

	now := time.Now().UTC()
	err = s.Store.MFASecrets().UpsertPending(ctx, domain.MFASecret{
		UserID:    userID,
		Secret:    key.Secret(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.MFAEnrollResponse{}, ErrMFAAlreadyEnabled
		}
		return domain.MFAEnrollResponse{}, err
	}

	return domain.MFAEnrollResponse{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCodePNG:  qr,
		Issuer:     s.Issuer,
		Account:    user.Email,
	}, nil
}

func renderQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CompleteSetup confirms the pending secret with a live TOTP code and
// enables MFA, returning the plaintext backup codes. This is the only time
// the codes are visible.
func (s *MFAService) CompleteSetup(ctx context.Context, userID, code string) ([]string, error) {
	secret, err := s.Store.MFASecrets().GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMFASetupNotStarted
		}
		return nil, err
	}
	if secret.Enabled() {
		return nil, ErrMFAAlreadyEnabled
	}

	valid, err := totp.ValidateCustom(code, secret.Secret, time.Now().UTC(), totpOpts)
	if err != nil || !valid {
		return nil, ErrInvalidMFACode
	}

	codes, err := cryptox.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	now := time.Now().UTC()
	stored := make([]domain.BackupCode, 0, len(codes))
	for _, plain := range codes {
		stored = append(stored, domain.BackupCode{
			ID:        idx.MustNew().String(),
			UserID:    userID,
			CodeHash:  cryptox.FingerprintToken(plain),
			CreatedAt: now,
		})
	}

	// Enable + codes + user flag move together or not at all. The
	// single-shot Enable makes a racing duplicate confirm fail cleanly.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFASecrets().Enable(ctx, userID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMFAAlreadyEnabled
			}
			return err
		}
		if err := tx.BackupCodes().Replace(ctx, userID, stored); err != nil {
			return err
		}
		return tx.Users().SetMFAEnabled(ctx, userID, &now)
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Emit(ctx, domain.AuditMFAEnabled, userID, "", "")
	return codes, nil
}

// Disable turns MFA off after re-proving both the password and a current
// second factor. Secret, backup codes and any pending challenges all go.
// A stolen session alone cannot lower the account's security.
func (s *MFAService) Disable(ctx context.Context, userID, password, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.MFAOn() {
		return ErrMFANotEnabled
	}

	// Password first: a wrong password fails before the code is even
	// looked at, so a correct backup code is not spent on the attempt.
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if _, err := s.verifyCode(ctx, userID, code, time.Now().UTC()); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFASecrets().Delete(ctx, userID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.BackupCodes().DeleteForUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.MFAChallenges().DeleteForUser(ctx, userID); err != nil {
			return err
		}
		return tx.Users().SetMFAEnabled(ctx, userID, nil)
	})
	if err != nil {
		return err
	}

	s.Audit.Emit(ctx, domain.AuditMFADisabled, userID, "", "")
	return nil
}

// RegenerateBackupCodes replaces the whole set after re-proving a current
// TOTP or backup code. Unused old codes stop working immediately.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.MFAOn() {
		return nil, ErrMFANotEnabled
	}
	if _, err := s.verifyCode(ctx, userID, code, time.Now().UTC()); err != nil {
		return nil, err
	}

	codes, err := cryptox.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	now := time.Now().UTC()
	stored := make([]domain.BackupCode, 0, len(codes))
	for _, plain := range codes {
		stored = append(stored, domain.BackupCode{
			ID:        idx.MustNew().String(),
			UserID:    userID,
			CodeHash:  cryptox.FingerprintToken(plain),
			CreatedAt: now,
		})
	}

	if err := s.Store.BackupCodes().Replace(ctx, userID, stored); err != nil {
		return nil, err
	}

	s.Audit.Emit(ctx, domain.AuditBackupCodesRotated, userID, "", "")
	return codes, nil
}

// BackupCodesRemaining reports how many unused codes the user still holds.
func (s *MFAService) BackupCodesRemaining(ctx context.Context, userID string) (int, error) {
	return s.Store.BackupCodes().CountRemaining(ctx, userID)
}

// VerifyChallenge completes a pending login challenge with either a 6-digit
// TOTP code or an 8-character backup code, and returns the token pair.
func (s *MFAService) VerifyChallenge(ctx context.Context, mfaToken, code, remoteIP string) (domain.TokenPair, error) {
	challenge, err := s.Store.MFAChallenges().Get(ctx, mfaToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrChallengeNotFound
		}
		return domain.TokenPair{}, err
	}

	now := time.Now().UTC()
	if now.After(challenge.ExpiresAt) {
		// Lazy expiry; housekeeping sweeps the rest.
		_ = s.Store.MFAChallenges().Consume(ctx, challenge.ID)
		return domain.TokenPair{}, ErrChallengeNotFound
	}

	usedBackup, verifyErr := s.verifyCode(ctx, challenge.UserID, code, now)
	if verifyErr != nil {
		return domain.TokenPair{}, s.recordFailure(ctx, challenge, remoteIP)
	}

	// Winner-takes-all: under concurrent verification only the caller
	// whose delete lands proceeds to token issuance.
	if err := s.Store.MFAChallenges().Consume(ctx, challenge.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrChallengeNotFound
		}
		return domain.TokenPair{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return domain.TokenPair{}, ErrChallengeNotFound
	}
	if !user.IsActive {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		slogx.FromContext(ctx).Warn("last login touch failed", "user_id", user.ID, "err", err)
	}

	pair, err := s.Tokens.IssuePair(ctx, user, challenge.SessionID, true)
	if err != nil {
		return domain.TokenPair{}, err
	}

	detail := "totp"
	if usedBackup {
		detail = "backup_code"
		s.Audit.Emit(ctx, domain.AuditBackupCodeConsumed, user.ID, remoteIP, "")
	}
	s.Audit.Emit(ctx, domain.AuditMFAVerifySucceeded, user.ID, remoteIP, detail)
	s.Audit.Emit(ctx, domain.AuditLoginSucceeded, user.ID, remoteIP, "mfa")

	return pair, nil
}

// verifyCode classifies by shape: 6 digits is TOTP, 8 characters is a
// backup code. Returns whether a backup code was spent.
func (s *MFAService) verifyCode(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	code = normalizeCode(code)

	switch {
	case len(code) == 6 && isDigits(code):
		secret, err := s.Store.MFASecrets().GetByUserID(ctx, userID)
		if err != nil || !secret.Enabled() {
			return false, ErrInvalidMFACode
		}
		valid, err := totp.ValidateCustom(code, secret.Secret, now, totpOpts)
		if err != nil || !valid {
			return false, ErrInvalidMFACode
		}
		if err := s.Store.MFASecrets().TouchLastUsed(ctx, userID, now); err != nil {
			slogx.FromContext(ctx).Warn("totp last used touch failed", "err", err)
		}
		return false, nil

	case len(code) == cryptox.BackupCodeLength:
		// Wrong code and already-spent code are indistinguishable here,
		// and the DELETE settles concurrent redemption of the same code.
		err := s.Store.BackupCodes().Consume(ctx, userID, cryptox.FingerprintToken(code))
		if err != nil {
			return false, ErrInvalidMFACode
		}
		return true, nil

	default:
		return false, ErrInvalidMFACode
	}
}

// recordFailure bumps the attempt counter, invalidating the challenge once
// the budget is gone.
func (s *MFAService) recordFailure(ctx context.Context, challenge domain.MFAChallenge, remoteIP string) error {
	s.Audit.Emit(ctx, domain.AuditMFAVerifyFailed, challenge.UserID, remoteIP, "")

	attempts, err := s.Store.MFAChallenges().IncrementAttempts(ctx, challenge.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}

	if attempts >= s.maxAttempts() {
		_ = s.Store.MFAChallenges().Consume(ctx, challenge.ID)
		return ErrTooManyMFAAttempts
	}
	return ErrInvalidMFACode
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToUpper(code)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
