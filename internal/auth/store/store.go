package store

import (
	"context"
	"errors"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it.
// Sub-repositories keep concerns tidy and testable, and having them as
// methods stops callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	MFASecrets() MFASecrets
	MFAChallenges() MFAChallenges
	BackupCodes() BackupCodes
	Sessions() Sessions
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back on error and
	// committing on nil. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByIdentifier resolves a login identifier, which may be a
	// username or an email address.
	GetUserByIdentifier(ctx context.Context, identifier string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the username or email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// ListUsers returns users ordered by creation date, newest first.
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateRole changes the user's role.
	UpdateRole(ctx context.Context, userID string, role domain.Role) error

	// SetActive toggles the is_active flag.
	SetActive(ctx context.Context, userID string, active bool) error

	// SetVerified toggles the is_verified flag.
	SetVerified(ctx context.Context, userID string, verified bool) error

	// SetMFAEnabled stamps or clears the user's mfa_enabled marker. The
	// authoritative enrolment state lives in mfa_secrets; this flag is
	// what login reads.
	SetMFAEnabled(ctx context.Context, userID string, enabledAt *time.Time) error

	// TouchLastLogin records a successful authentication time.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// DeleteUser cascades to sessions, secrets and codes per schema.
	DeleteUser(ctx context.Context, userID string) error
}

type MFASecrets interface {
	// UpsertPending writes a not-yet-confirmed TOTP secret, replacing any
	// previous pending secret. Fails with ErrAlreadyExists when an enabled
	// secret is present.
	UpsertPending(ctx context.Context, s domain.MFASecret) error

	// GetByUserID returns the user's secret regardless of state.
	GetByUserID(ctx context.Context, userID string) (domain.MFASecret, error)

	// Enable confirms a pending secret. Returns ErrNotFound when no
	// pending secret exists, so a stale confirm cannot enable anything.
	Enable(ctx context.Context, userID string, at time.Time) error

	// TouchLastUsed records a successful TOTP verification.
	TouchLastUsed(ctx context.Context, userID string, at time.Time) error

	// Delete removes the secret entirely, pending or enabled.
	Delete(ctx context.Context, userID string) error
}

type MFAChallenges interface {
	// Create stores a new pending challenge.
	Create(ctx context.Context, c domain.MFAChallenge) error

	// Get returns a challenge by id, expired or not; callers check expiry.
	Get(ctx context.Context, id string) (domain.MFAChallenge, error)

	// IncrementAttempts bumps the failed-attempt counter and returns the
	// new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// Consume deletes the challenge, returning ErrNotFound if it was
	// already consumed. This is the single-use guarantee under
	// concurrent verification.
	Consume(ctx context.Context, id string) error

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) error

	// DeleteForUser removes all pending challenges for a user.
	DeleteForUser(ctx context.Context, userID string) error
}

type BackupCodes interface {
	// Replace deletes the user's existing codes and stores the new set.
	Replace(ctx context.Context, userID string, codes []domain.BackupCode) error

	// Consume deletes the code matching hash for the user. ErrNotFound
	// means the code is wrong or already spent; the two cases are
	// deliberately indistinguishable.
	Consume(ctx context.Context, userID, codeHash string) error

	// CountRemaining returns how many unused codes the user holds.
	CountRemaining(ctx context.Context, userID string) (int, error)

	// DeleteForUser removes all codes, used on MFA disable.
	DeleteForUser(ctx context.Context, userID string) error
}

type Sessions interface {
	// Create stores a new session record for an issued refresh token.
	Create(ctx context.Context, s domain.Session) error

	// GetByID returns the session for a refresh token jti.
	GetByID(ctx context.Context, id string) (domain.Session, error)

	// Revoke flips revoked=1 for one session record.
	Revoke(ctx context.Context, id string) error

	// RevokeBySessionID revokes every record sharing a session id, past
	// and present. Used on logout and on replay detection.
	RevokeBySessionID(ctx context.Context, sessionID string) error

	// RevokeAllForUser revokes everything the user holds, used on
	// password change and admin deactivation.
	RevokeAllForUser(ctx context.Context, userID string) error

	// ListActiveForUser returns non-revoked, unexpired sessions.
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) error
}

type AuditEvents interface {
	// Append writes one audit record. Append-only by design.
	Append(ctx context.Context, e domain.AuditEvent) error

	// ListForUser returns recent events for a user, newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.AuditEvent, error)

	// DeleteOlderThan trims the log during housekeeping.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}
