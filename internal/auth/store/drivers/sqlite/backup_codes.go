package sqlite

import (
	"context"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) Replace(ctx context.Context, userID string, codes []domain.BackupCode) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ?`, userID); err != nil {
		return err
	}

	for _, code := range codes {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO backup_codes (id, user_id, code_hash, created_at)
			VALUES (?, ?, ?, ?)`,
			code.ID, code.UserID, code.CodeHash, code.CreatedAt)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

// Consume deletes the matching code. A wrong code and an already-spent code
// both land on ErrNotFound, so callers cannot leak which it was. The DELETE
// is the atomicity point for concurrent redemption of the same code.
func (r *backupCodesRepo) Consume(ctx context.Context, userID, codeHash string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash)
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

func (r *backupCodesRepo) CountRemaining(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r *backupCodesRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}
