package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
)

func totpCodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

func TestMFASetup(t *testing.T) {
	ctx := context.Background()

	t.Run("initiate returns provisioning material", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")

		enroll, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.NoError(t, err)
		require.NotEmpty(t, enroll.Secret)
		require.Contains(t, enroll.OTPAuthURL, "otpauth://totp/")
		require.NotEmpty(t, enroll.QRCodePNG)
		require.Equal(t, "alice@example.com", enroll.Account)

		// Pending only: login still goes straight to tokens.
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
	})

	t.Run("complete enables and returns backup codes", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")

		enroll, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.NoError(t, err)

		codes, err := env.MFA.CompleteSetup(ctx, user.ID, env.totpCode(t, enroll.Secret))
		require.NoError(t, err)
		require.Len(t, codes, backupCodeCount)
		for _, code := range codes {
			require.Len(t, code, cryptox.BackupCodeLength)
		}

		got, err := env.Users.Get(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.MFAOn())
	})

	t.Run("complete with wrong code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")

		_, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.NoError(t, err)

		_, err = env.MFA.CompleteSetup(ctx, user.ID, "000000")
		require.ErrorIs(t, err, ErrInvalidMFACode)

		got, err := env.Users.Get(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, got.MFAOn(), "failed confirm must not enable")
	})

	t.Run("complete without initiate", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")

		_, err := env.MFA.CompleteSetup(ctx, user.ID, "123456")
		require.ErrorIs(t, err, ErrMFASetupNotStarted)
	})

	t.Run("initiate again replaces a pending secret", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")

		first, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.NoError(t, err)
		second, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.NoError(t, err)
		require.NotEqual(t, first.Secret, second.Secret)

		// The superseded secret no longer confirms.
		_, err = env.MFA.CompleteSetup(ctx, user.ID, env.totpCode(t, first.Secret))
		require.ErrorIs(t, err, ErrInvalidMFACode)

		_, err = env.MFA.CompleteSetup(ctx, user.ID, env.totpCode(t, second.Secret))
		require.NoError(t, err)
	})

	t.Run("initiate while enabled", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")
		env.enableMFA(t, user.ID)

		_, err := env.MFA.InitiateSetup(ctx, user.ID)
		require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
	})

	t.Run("disable requires password and a current code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")
		secret, _ := env.enableMFA(t, user.ID)

		// Wrong password loses even with a correct code, and the other
		// way around.
		require.ErrorIs(t,
			env.MFA.Disable(ctx, user.ID, "wrong", env.totpCode(t, secret)),
			ErrInvalidCredentials)
		require.ErrorIs(t,
			env.MFA.Disable(ctx, user.ID, testPassword, "000000"),
			ErrInvalidMFACode)

		require.NoError(t, env.MFA.Disable(ctx, user.ID, testPassword, env.totpCode(t, secret)))

		got, err := env.Users.Get(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, got.MFAOn())

		// Login goes straight to tokens again.
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
	})

	t.Run("regenerate replaces the set", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")
		secret, oldCodes := env.enableMFA(t, user.ID)

		_, err := env.MFA.RegenerateBackupCodes(ctx, user.ID, "junk")
		require.ErrorIs(t, err, ErrInvalidMFACode)

		newCodes, err := env.MFA.RegenerateBackupCodes(ctx, user.ID, env.totpCode(t, secret))
		require.NoError(t, err)
		require.Len(t, newCodes, backupCodeCount)
		require.NotElementsMatch(t, oldCodes, newCodes)

		remaining, err := env.MFA.BackupCodesRemaining(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, backupCodeCount, remaining)
	})
}

func TestVerifyChallenge(t *testing.T) {
	ctx := context.Background()

	// loginChallenge sets up an MFA user and parks a login at the
	// challenge stage.
	loginChallenge := func(t *testing.T, env *testEnv) (secret string, backupCodes []string, mfaToken string) {
		t.Helper()
		user := env.signup(t, "alice", "alice@example.com")
		secret, backupCodes = env.enableMFA(t, user.ID)

		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		require.NotNil(t, res.Challenge)
		return secret, backupCodes, res.Challenge.MFAToken
	}

	t.Run("totp completes the login", func(t *testing.T) {
		env := newTestEnv(t)
		secret, _, mfaToken := loginChallenge(t, env)

		pair, err := env.MFA.VerifyChallenge(ctx, mfaToken, env.totpCode(t, secret), "")
		require.NoError(t, err)

		claims, err := env.Keys.Verifier().Verify(pair.AccessToken, jwtx.TokenUseAccess)
		require.NoError(t, err)
		require.True(t, claims.MFAVerified)
	})

	t.Run("challenge is single use", func(t *testing.T) {
		env := newTestEnv(t)
		secret, _, mfaToken := loginChallenge(t, env)

		_, err := env.MFA.VerifyChallenge(ctx, mfaToken, env.totpCode(t, secret), "")
		require.NoError(t, err)

		_, err = env.MFA.VerifyChallenge(ctx, mfaToken, env.totpCode(t, secret), "")
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("backup code completes the login once", func(t *testing.T) {
		env := newTestEnv(t)
		_, backupCodes, mfaToken := loginChallenge(t, env)

		pair, err := env.MFA.VerifyChallenge(ctx, mfaToken, backupCodes[0], "")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)

		// A second login cannot spend the same code.
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		_, err = env.MFA.VerifyChallenge(ctx, res.Challenge.MFAToken, backupCodes[0], "")
		require.ErrorIs(t, err, ErrInvalidMFACode)
	})

	t.Run("backup codes are case and separator insensitive", func(t *testing.T) {
		env := newTestEnv(t)
		_, backupCodes, mfaToken := loginChallenge(t, env)

		code := backupCodes[0]
		sloppy := strings.ToLower(code[:4]) + " " + code[4:]
		_, err := env.MFA.VerifyChallenge(ctx, mfaToken, sloppy, "")
		require.NoError(t, err)
	})

	t.Run("wrong codes burn the attempt budget", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, mfaToken := loginChallenge(t, env)

		for i := 0; i < defaultMaxAttempts-1; i++ {
			_, err := env.MFA.VerifyChallenge(ctx, mfaToken, "000000", "")
			require.ErrorIs(t, err, ErrInvalidMFACode, "attempt %d", i)
		}

		_, err := env.MFA.VerifyChallenge(ctx, mfaToken, "000000", "")
		require.ErrorIs(t, err, ErrTooManyMFAAttempts)

		// The challenge is dead, even for a correct code now.
		_, err = env.MFA.VerifyChallenge(ctx, mfaToken, "000000", "")
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("expired challenge rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.Login.ChallengeTTL = time.Nanosecond

		secret, _, mfaToken := loginChallenge(t, env)

		_, err := env.MFA.VerifyChallenge(ctx, mfaToken, env.totpCode(t, secret), "")
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.MFA.VerifyChallenge(ctx, "01JUNKJUNKJUNKJUNKJUNKJUNK", "123456", "")
		require.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("garbage code shapes are invalid", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, mfaToken := loginChallenge(t, env)

		// Four shapes stay inside the five-attempt budget.
		for _, bad := range []string{"", "12345", "1234567", "12345678901234"} {
			_, err := env.MFA.VerifyChallenge(ctx, mfaToken, bad, "")
			require.ErrorIs(t, err, ErrInvalidMFACode, "code %q", bad)
		}
	})
}
