package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
)

type mfaSecretsRepo struct {
	db dbtx
}

func (r *mfaSecretsRepo) UpsertPending(ctx context.Context, s domain.MFASecret) error {
	// The WHERE guard on the conflict clause makes this a single atomic
	// statement: an enabled secret is never touched, even by an upsert
	// racing the enabling transaction. Zero affected rows means the
	// secret is already live.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_secrets (user_id, secret, enabled_at, last_used_at, created_at, updated_at)
		VALUES (?, ?, NULL, NULL, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			secret = excluded.secret,
			enabled_at = NULL,
			last_used_at = NULL,
			updated_at = excluded.updated_at
		WHERE mfa_secrets.enabled_at IS NULL`,
		s.UserID, s.Secret, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *mfaSecretsRepo) GetByUserID(ctx context.Context, userID string) (domain.MFASecret, error) {
	var (
		s        domain.MFASecret
		enabled  sql.NullTime
		lastUsed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, secret, enabled_at, last_used_at, created_at, updated_at
		FROM mfa_secrets WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Secret, &enabled, &lastUsed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.MFASecret{}, mapNotFound(err)
	}
	s.EnabledAt = mapNullTimePtr(enabled)
	s.LastUsedAt = mapNullTimePtr(lastUsed)
	return s, nil
}

func (r *mfaSecretsRepo) Enable(ctx context.Context, userID string, at time.Time) error {
	// The enabled_at IS NULL guard makes confirmation idempotent-safe: a
	// second confirm, or one racing a disable, affects zero rows.
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_secrets SET enabled_at = ?, updated_at = ?
		WHERE user_id = ? AND enabled_at IS NULL`,
		at, at, userID)
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

func (r *mfaSecretsRepo) TouchLastUsed(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_secrets SET last_used_at = ?, updated_at = ?
		WHERE user_id = ?`, at, at, userID)
	return err
}

func (r *mfaSecretsRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_secrets WHERE user_id = ?`, userID)
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
