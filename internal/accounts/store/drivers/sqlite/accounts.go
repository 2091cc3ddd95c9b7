package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, name, roles, password_hash, session_marker, last_login_at, created_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (domain.Account, error) {
	var (
		a           domain.Account
		roles       string
		marker      sql.NullString
		lastLoginAt sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&a.ID, &a.Name, &roles, &a.PasswordHash, &marker, &lastLoginAt, &createdAt); err != nil {
		return domain.Account{}, err
	}

	a.Roles = splitRoles(roles)
	a.SessionMarker = mapNullStringPtr(marker)
	a.LastLoginAt = mapNullTimePtr(lastLoginAt)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id int64) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByName(ctx context.Context, name string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name)

	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountBySession(ctx context.Context, marker string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE session_marker = ?`, marker)

	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

// Roles are stored space-delimited; padding both sides with spaces makes the
// match exact rather than a substring match (ROLE_USER must not match
// ROLE_USER_AUDIT).
const roleMatch = `instr(' ' || roles || ' ', ' ' || ? || ' ') > 0`

func (r *accountsRepo) ListAccountsByRole(ctx context.Context, role string) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+roleMatch+` ORDER BY id ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *accountsRepo) ListAccountsAdminFirst(ctx context.Context, role string) ([]domain.Account, error) {
	// SQLite has no IF expression; CASE keeps role holders first.
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 ORDER BY CASE WHEN `+roleMatch+` THEN 0 ELSE 1 END, id ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, roles, password_hash, session_marker, last_login_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name,
		joinRoles(a.Roles),
		a.PasswordHash,
		mapOptionalString(a.SessionMarker),
		mapOptionalTime(a.LastLoginAt),
		a.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return res.LastInsertId()
}

// SaveAccount updates the mutable fields. created_at is deliberately not
// touched, it is set exactly once at creation.
func (r *accountsRepo) SaveAccount(ctx context.Context, a domain.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET name = ?, roles = ?, password_hash = ?, session_marker = ?, last_login_at = ?
		 WHERE id = ?`,
		a.Name,
		joinRoles(a.Roles),
		a.PasswordHash,
		mapOptionalString(a.SessionMarker),
		mapOptionalTime(a.LastLoginAt),
		a.ID,
	)
	if err != nil {
		return mapConstraint(err)
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

func (r *accountsRepo) DeleteAccount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return err
}

func (r *accountsRepo) DeleteAccountsByRole(ctx context.Context, role string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE `+roleMatch, role)
	return err
}

func (r *accountsRepo) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}
