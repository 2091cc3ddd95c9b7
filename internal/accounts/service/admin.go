package service

import (
	"context"
	"fmt"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/cryptox"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// AdminService (re)creates the one privileged account. The account is
// logically singleton: recreation always starts by deleting every holder of
// the role, so stray duplicates cannot survive.
type AdminService struct {
	Store store.Store
	Clock Clock

	// Role is the privileged role name, ROLE_ADMIN unless reconfigured.
	Role string

	// DefaultName and DefaultPassword are the credentials used when the
	// lifecycle engine recreates the admin after auto-deletion.
	DefaultName     string
	DefaultPassword string
}

// Recreate deletes any existing privileged account(s) and creates a fresh one
// with the given name and password. Safe to call when no privileged account
// exists. Used by the recreate-admin CLI command; the lifecycle engine uses
// the transactional variant with the configured defaults.
func (s *AdminService) Recreate(ctx context.Context, name, password string) (domain.Account, error) {
	var acct domain.Account
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		acct, err = s.recreate(ctx, tx, name, password)
		return err
	})
	return acct, err
}

func (s *AdminService) recreate(ctx context.Context, tx store.Tx, name, password string) (domain.Account, error) {
	if err := tx.Accounts().DeleteAccountsByRole(ctx, s.Role); err != nil {
		return domain.Account{}, fmt.Errorf("delete existing %s accounts: %w", s.Role, err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash admin password: %w", err)
	}

	acct := domain.Account{
		Name:         name,
		Roles:        []string{s.Role},
		PasswordHash: hash,
		CreatedAt:    s.Clock.Now(),
	}
	acct.NormalizeRoles()

	id, err := tx.Accounts().CreateAccount(ctx, acct)
	if err != nil {
		return domain.Account{}, fmt.Errorf("create admin account: %w", err)
	}
	acct.ID = id
	return acct, nil
}

// Ensure makes sure exactly one privileged account exists. Zero admins (first
// boot, or someone poked the database) or more than one (invariant violation)
// both resolve to a fresh default admin.
func (s *AdminService) Ensure(ctx context.Context) error {
	admins, err := s.Store.Accounts().ListAccountsByRole(ctx, s.Role)
	if err != nil {
		return err
	}

	log := slogx.FromContext(ctx)
	switch len(admins) {
	case 1:
		return nil
	case 0:
		log.Info("no admin account found, creating default admin")
	default:
		log.Warn("multiple admin accounts found, resetting to a single default admin",
			"count", len(admins))
	}

	_, err = s.Recreate(ctx, s.DefaultName, s.DefaultPassword)
	return err
}
