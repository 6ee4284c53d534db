package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestUser(t *testing.T, st *Store) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.MustNew().String(),
		Username:     "alice-" + idx.MustNew().String(),
		Email:        idx.MustNew().String() + "@example.com",
		PasswordHash: "$argon2id$fake",
		Role:         domain.RoleClient,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsersRepo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t.Run("lookup by username and email", func(t *testing.T) {
		u := newTestUser(t, st)

		byName, err := st.Users().GetUserByIdentifier(ctx, u.Username)
		require.NoError(t, err)
		require.Equal(t, u.ID, byName.ID)

		byEmail, err := st.Users().GetUserByIdentifier(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)

		_, err = st.Users().GetUserByIdentifier(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		u := newTestUser(t, st)

		dup := u
		dup.ID = idx.MustNew().String()
		dup.Email = "other@example.com"
		err := st.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("role and active updates", func(t *testing.T) {
		u := newTestUser(t, st)

		require.NoError(t, st.Users().UpdateRole(ctx, u.ID, domain.RoleAdmin))
		require.NoError(t, st.Users().SetActive(ctx, u.ID, false))

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, got.Role)
		require.False(t, got.IsActive)
	})

	t.Run("update on missing user", func(t *testing.T) {
		err := st.Users().UpdateRole(ctx, "missing", domain.RoleAdmin)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("last login touch", func(t *testing.T) {
		u := newTestUser(t, st)
		at := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, st.Users().TouchLastLogin(ctx, u.ID, at))

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
	})
}

func TestMFASecretsRepo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	newSecret := func(userID string) domain.MFASecret {
		now := time.Now().UTC()
		return domain.MFASecret{
			UserID:    userID,
			Secret:    "JBSWY3DPEHPK3PXP",
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("pending secret can be replaced", func(t *testing.T) {
		u := newTestUser(t, st)

		require.NoError(t, st.MFASecrets().UpsertPending(ctx, newSecret(u.ID)))

		replacement := newSecret(u.ID)
		replacement.Secret = "NBSWY3DPEHPK3PXQ"
		require.NoError(t, st.MFASecrets().UpsertPending(ctx, replacement))

		got, err := st.MFASecrets().GetByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "NBSWY3DPEHPK3PXQ", got.Secret)
		require.False(t, got.Enabled())
	})

	t.Run("enabled secret cannot be replaced", func(t *testing.T) {
		u := newTestUser(t, st)

		require.NoError(t, st.MFASecrets().UpsertPending(ctx, newSecret(u.ID)))
		require.NoError(t, st.MFASecrets().Enable(ctx, u.ID, time.Now().UTC()))

		intruder := newSecret(u.ID)
		intruder.Secret = "NBSWY3DPEHPK3PXQ"
		err := st.MFASecrets().UpsertPending(ctx, intruder)
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		// The refused upsert must not have clobbered anything: same
		// secret, still enabled.
		got, err := st.MFASecrets().GetByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "JBSWY3DPEHPK3PXP", got.Secret)
		require.True(t, got.Enabled())
	})

	t.Run("enable is single-shot", func(t *testing.T) {
		u := newTestUser(t, st)

		require.NoError(t, st.MFASecrets().UpsertPending(ctx, newSecret(u.ID)))
		require.NoError(t, st.MFASecrets().Enable(ctx, u.ID, time.Now().UTC()))

		err := st.MFASecrets().Enable(ctx, u.ID, time.Now().UTC())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestMFAChallengesRepo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	newChallenge := func(userID string) domain.MFAChallenge {
		now := time.Now().UTC()
		return domain.MFAChallenge{
			ID:        idx.MustNew().String(),
			UserID:    userID,
			SessionID: idx.MustNew().String(),
			ExpiresAt: now.Add(5 * time.Minute),
			CreatedAt: now,
		}
	}

	t.Run("attempts increment", func(t *testing.T) {
		u := newTestUser(t, st)
		c := newChallenge(u.ID)
		require.NoError(t, st.MFAChallenges().Create(ctx, c))

		n, err := st.MFAChallenges().IncrementAttempts(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = st.MFAChallenges().IncrementAttempts(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})

	t.Run("consume is single-use", func(t *testing.T) {
		u := newTestUser(t, st)
		c := newChallenge(u.ID)
		require.NoError(t, st.MFAChallenges().Create(ctx, c))

		require.NoError(t, st.MFAChallenges().Consume(ctx, c.ID))
		require.ErrorIs(t, st.MFAChallenges().Consume(ctx, c.ID), store.ErrNotFound)
	})

	t.Run("concurrent consume admits exactly one", func(t *testing.T) {
		u := newTestUser(t, st)
		c := newChallenge(u.ID)
		require.NoError(t, st.MFAChallenges().Create(ctx, c))

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- st.MFAChallenges().Consume(ctx, c.ID)
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, store.ErrNotFound)
			}
		}
		require.Equal(t, 1, wins)
	})

	t.Run("expired challenges are purged", func(t *testing.T) {
		u := newTestUser(t, st)
		c := newChallenge(u.ID)
		c.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		require.NoError(t, st.MFAChallenges().Create(ctx, c))

		require.NoError(t, st.MFAChallenges().DeleteExpired(ctx, time.Now().UTC()))
		_, err := st.MFAChallenges().Get(ctx, c.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBackupCodesRepo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	storeCodes := func(t *testing.T, userID string, hashes ...string) {
		t.Helper()
		now := time.Now().UTC()
		codes := make([]domain.BackupCode, 0, len(hashes))
		for _, h := range hashes {
			codes = append(codes, domain.BackupCode{
				ID:        idx.MustNew().String(),
				UserID:    userID,
				CodeHash:  h,
				CreatedAt: now,
			})
		}
		require.NoError(t, st.BackupCodes().Replace(ctx, userID, codes))
	}

	t.Run("consume spends the code once", func(t *testing.T) {
		u := newTestUser(t, st)
		storeCodes(t, u.ID, "hash-1", "hash-2")

		require.NoError(t, st.BackupCodes().Consume(ctx, u.ID, "hash-1"))
		require.ErrorIs(t, st.BackupCodes().Consume(ctx, u.ID, "hash-1"), store.ErrNotFound)

		n, err := st.BackupCodes().CountRemaining(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("concurrent redemption admits exactly one", func(t *testing.T) {
		u := newTestUser(t, st)
		storeCodes(t, u.ID, "contested")

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- st.BackupCodes().Consume(ctx, u.ID, "contested")
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			}
		}
		require.Equal(t, 1, wins)
	})

	t.Run("replace swaps the whole set", func(t *testing.T) {
		u := newTestUser(t, st)
		storeCodes(t, u.ID, "old-1", "old-2")
		storeCodes(t, u.ID, "new-1")

		require.ErrorIs(t, st.BackupCodes().Consume(ctx, u.ID, "old-1"), store.ErrNotFound)
		require.NoError(t, st.BackupCodes().Consume(ctx, u.ID, "new-1"))
	})
}

func TestSessionsRepo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	newSession := func(userID, sessionID string) domain.Session {
		now := time.Now().UTC()
		return domain.Session{
			ID:        idx.MustNew().String(),
			SessionID: sessionID,
			UserID:    userID,
			TokenHash: idx.MustNew().String(),
			ExpiresAt: now.Add(time.Hour),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("revoke marks only once", func(t *testing.T) {
		u := newTestUser(t, st)
		s := newSession(u.ID, "sess-1")
		require.NoError(t, st.Sessions().Create(ctx, s))

		require.NoError(t, st.Sessions().Revoke(ctx, s.ID))
		require.ErrorIs(t, st.Sessions().Revoke(ctx, s.ID), store.ErrNotFound)

		got, err := st.Sessions().GetByID(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	})

	t.Run("revoke by session id sweeps the lineage", func(t *testing.T) {
		u := newTestUser(t, st)
		a := newSession(u.ID, "lineage")
		b := newSession(u.ID, "lineage")
		other := newSession(u.ID, "other")
		require.NoError(t, st.Sessions().Create(ctx, a))
		require.NoError(t, st.Sessions().Create(ctx, b))
		require.NoError(t, st.Sessions().Create(ctx, other))

		require.NoError(t, st.Sessions().RevokeBySessionID(ctx, "lineage"))

		active, err := st.Sessions().ListActiveForUser(ctx, u.ID, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, active, 1)
		require.Equal(t, other.ID, active[0].ID)
	})

	t.Run("revoke all for user", func(t *testing.T) {
		u := newTestUser(t, st)
		require.NoError(t, st.Sessions().Create(ctx, newSession(u.ID, "s1")))
		require.NoError(t, st.Sessions().Create(ctx, newSession(u.ID, "s2")))

		require.NoError(t, st.Sessions().RevokeAllForUser(ctx, u.ID))

		active, err := st.Sessions().ListActiveForUser(ctx, u.ID, time.Now().UTC())
		require.NoError(t, err)
		require.Empty(t, active)
	})

	t.Run("deleting the user cascades", func(t *testing.T) {
		u := newTestUser(t, st)
		s := newSession(u.ID, "cascade")
		require.NoError(t, st.Sessions().Create(ctx, s))

		require.NoError(t, st.Users().DeleteUser(ctx, u.ID))

		_, err := st.Sessions().GetByID(ctx, s.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithTx(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		u := newTestUser(t, st)
		boom := errors.New("boom")

		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().SetActive(ctx, u.ID, false); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.IsActive, "rollback should restore is_active")
	})

	t.Run("commits on nil", func(t *testing.T) {
		u := newTestUser(t, st)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().SetActive(ctx, u.ID, false)
		})
		require.NoError(t, err)

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.IsActive)
	})
}
