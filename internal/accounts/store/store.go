package store

import (
	"context"
	"errors"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite) implement
// this. Sub-repositories keep concerns tidy and testable, and giving out a
// Tx-scoped Store stops anyone from accidentally nesting transactions.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The lifecycle engine relies on this for its read-decide-write sequence:
	// two concurrent evaluations of the same account must not both delete it.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction. If fn returns an
	// error, the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id int64) (domain.Account, error)

	// GetAccountByName is used during login and the unique-name check.
	GetAccountByName(ctx context.Context, name string) (domain.Account, error)

	// GetAccountBySession resolves the account holding the given session
	// marker. Used by the session middleware.
	GetAccountBySession(ctx context.Context, marker string) (domain.Account, error)

	// ListAccountsByRole returns accounts carrying the exact role name.
	ListAccountsByRole(ctx context.Context, role string) ([]domain.Account, error)

	// ListAccountsAdminFirst returns every account ordered with holders of
	// the given role first, then by id ascending.
	ListAccountsAdminFirst(ctx context.Context, role string) ([]domain.Account, error)

	// CreateAccount inserts a new account and returns the assigned id.
	// CreatedAt must be set by the caller and is never updated afterwards.
	CreateAccount(ctx context.Context, a domain.Account) (int64, error)

	// SaveAccount persists the mutable fields of an existing account
	// (name, roles, password hash, session marker, last login).
	SaveAccount(ctx context.Context, a domain.Account) error

	// DeleteAccount removes an account by id.
	DeleteAccount(ctx context.Context, id int64) error

	// DeleteAccountsByRole removes every account carrying the role. Used by
	// the privileged-account factory to clear stray duplicates.
	DeleteAccountsByRole(ctx context.Context, role string) error

	// CountAccounts returns the total number of accounts.
	CountAccounts(ctx context.Context) (int64, error)
}
