package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/cryptox"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

var (
	ErrNameTaken          = errors.New("account name already taken")
	ErrInvalidName        = errors.New("account name must be 3 to 60 characters")
	ErrInvalidPassword    = errors.New("password must be 1 to 60 characters")
	ErrInvalidCredentials = errors.New("invalid name or password")
)

// AccountService covers registration, login/logout and profile maintenance.
// Login is where single-session enforcement starts: every successful login
// writes a fresh session marker, which supersedes whatever session held the
// account before.
type AccountService struct {
	Store store.Store
	Clock Clock
	Guard SessionGuard
}

// Register creates a new account with the default role.
func (s *AccountService) Register(ctx context.Context, name, password string) (domain.Account, error) {
	if err := validateName(name); err != nil {
		return domain.Account{}, err
	}
	if err := validatePassword(password); err != nil {
		return domain.Account{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	acct := domain.Account{
		Name:         name,
		Roles:        []string{domain.RoleUser},
		PasswordHash: hash,
		CreatedAt:    s.Clock.Now(),
	}

	id, err := s.Store.Accounts().CreateAccount(ctx, acct)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.Account{}, ErrNameTaken
	}
	if err != nil {
		return domain.Account{}, err
	}
	acct.ID = id

	slogx.FromContext(ctx).Info("account registered", "account_id", id, "name", name)
	return acct, nil
}

// Login verifies the credentials and authorises a new single session: a fresh
// marker is written along with the login time, invalidating any session that
// previously held this account.
func (s *AccountService) Login(ctx context.Context, name, password string) (domain.Account, string, error) {
	acct, err := s.Store.Accounts().GetAccountByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, "", err
	}

	if err := cryptox.VerifyPassword(password, acct.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Account{}, "", ErrInvalidCredentials
		}
		return domain.Account{}, "", err
	}

	marker := uuid.NewString()
	now := s.Clock.Now()
	acct.SessionMarker = &marker
	acct.LastLoginAt = &now

	if err := s.Store.Accounts().SaveAccount(ctx, acct); err != nil {
		return domain.Account{}, "", err
	}

	slogx.FromContext(ctx).Info("login", "account_id", acct.ID, "name", acct.Name)
	return acct, marker, nil
}

// Logout clears the session marker. Clearing it is the sole mechanism for
// logging an account out, so this also covers "log me out everywhere".
func (s *AccountService) Logout(ctx context.Context, accountID int64) error {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil // already gone, nothing to clear
	}
	if err != nil {
		return err
	}

	acct.SessionMarker = nil
	if err := s.Store.Accounts().SaveAccount(ctx, acct); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("logout", "account_id", acct.ID)
	return nil
}

// UpdateProfile renames an account and/or replaces its password. Keeping the
// current name is allowed; taking another account's name is not. When the
// update leaves the stored principal invalid (the name changed), the session
// marker is cleared so the owner has to log in again.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID int64, newName, newPassword string) (domain.Account, error) {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	before := acct

	if newName != "" && newName != acct.Name {
		if err := validateName(newName); err != nil {
			return domain.Account{}, err
		}
		acct.Name = newName
	}

	if newPassword != "" {
		if err := validatePassword(newPassword); err != nil {
			return domain.Account{}, err
		}
		hash, err := cryptox.HashPassword(newPassword)
		if err != nil {
			return domain.Account{}, fmt.Errorf("hash password: %w", err)
		}
		acct.PasswordHash = hash
	}

	if !s.Guard.StillValid(before, acct) {
		acct.SessionMarker = nil
	}

	// The unique index decides name ownership; a read-then-write check here
	// would race with concurrent renames.
	if err := s.Store.Accounts().SaveAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrNameTaken
		}
		return domain.Account{}, err
	}
	return acct, nil
}

// SetRoles replaces an account's role set (admin operation). A role change
// invalidates the principal, so the holder's session marker is cleared and
// the next request forces a re-login.
func (s *AccountService) SetRoles(ctx context.Context, accountID int64, roles []string) (domain.Account, error) {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	before := acct

	acct.Roles = roles
	acct.NormalizeRoles()

	if !s.Guard.StillValid(before, acct) {
		acct.SessionMarker = nil
	}

	if err := s.Store.Accounts().SaveAccount(ctx, acct); err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}

// List returns every account, privileged account first.
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	return s.Store.Accounts().ListAccountsAdminFirst(ctx, domain.RoleAdmin)
}

// Delete removes an account by id.
func (s *AccountService) Delete(ctx context.Context, accountID int64) error {
	return s.Store.Accounts().DeleteAccount(ctx, accountID)
}

func validateName(name string) error {
	if len(name) < 3 || len(name) > 60 {
		return ErrInvalidName
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" || len(password) > 60 {
		return ErrInvalidPassword
	}
	return nil
}
