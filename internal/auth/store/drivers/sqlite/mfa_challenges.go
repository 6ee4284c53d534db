package sqlite

import (
	"context"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
)

type mfaChallengesRepo struct {
	db dbtx
}

func (r *mfaChallengesRepo) Create(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, user_id, session_id, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.SessionID, c.Attempts, c.ExpiresAt, c.CreatedAt)
	return mapConstraint(err)
}

func (r *mfaChallengesRepo) Get(ctx context.Context, id string) (domain.MFAChallenge, error) {
	var c domain.MFAChallenge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, attempts, expires_at, created_at
		FROM mfa_challenges WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.SessionID, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *mfaChallengesRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}

	var attempts int
	err = r.db.QueryRowContext(ctx,
		`SELECT attempts FROM mfa_challenges WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

// Consume deletes the challenge. DELETE plus RowsAffected makes the
// single-use property hold under concurrent verifies: exactly one caller
// sees the row disappear.
func (r *mfaChallengesRepo) Consume(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *mfaChallengesRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE expires_at < ?`, now)
	return err
}

func (r *mfaChallengesRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE user_id = ?`, userID)
	return err
}
