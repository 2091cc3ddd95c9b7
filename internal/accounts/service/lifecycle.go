package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// State is the lifecycle state reported for an account. States are derived
// fresh from stored timestamps on every evaluation; nothing is cached
// in-process between calls.
type State string

const (
	// StateLocalLogoutPending: logged in here, logout timer still running.
	StateLocalLogoutPending State = "LOCAL_LOGOUT_PENDING"
	// StateRemoteLogoutPending: the account is logged in, but under a
	// different session marker. A newer login elsewhere superseded this one.
	StateRemoteLogoutPending State = "REMOTE_LOGOUT_PENDING"
	// StateLoggedOut: not logged in, and auto-delete is disabled.
	StateLoggedOut State = "LOGGED_OUT"
	// StateDeletePending: not logged in, delete timer still running.
	StateDeletePending State = "DELETE_PENDING"
	// StateDeleted: the account no longer exists (or never did).
	StateDeleted State = "DELETED"
)

// Status is the report produced by one evaluation, consumed by the polled
// status endpoints.
type Status struct {
	ID               int64 `json:"id"`
	State            State `json:"state"`
	SecondsRemaining int64 `json:"seconds_remaining"`
}

// LifecycleService is the session lifecycle state machine. Given an account
// id it derives the current state from stored facts plus the clock, applies
// any due side effects (clearing the session marker, deleting the account,
// recreating the admin account) and returns a status report.
//
// Each call is self-contained and idempotent: a second evaluation right after
// the first observes the effects of the first and reports the same state.
type LifecycleService struct {
	Store store.Store
	Clock Clock
	Admin *AdminService

	// LogoutWindow is the inactivity duration after which a logged-in
	// account's session marker is cleared. Must be positive.
	LogoutWindow time.Duration

	// DeleteWindow is the additional inactivity duration, counted after the
	// logout window, after which the account record is deleted.
	DeleteWindow time.Duration

	// AutoDelete enables the delete path. When off, fully idle accounts just
	// report LOGGED_OUT forever.
	AutoDelete bool

	// CheckRemoteLogout enables supersession reporting. Integration tests
	// without a real competing session turn this off.
	CheckRemoteLogout bool
}

// Evaluate runs the state machine for one account. requesterMarker is the
// session marker of the caller's own session, used only for the supersession
// check. An unknown account id is not an error: the caller is polling and the
// account is simply already gone, so it reports DELETED.
//
// The read-decide-write sequence runs in a single store transaction so that
// two concurrent evaluations of the same account cannot both delete it or
// recreate the admin account twice.
func (s *LifecycleService) Evaluate(ctx context.Context, accountID int64, requesterMarker string) (Status, error) {
	status := Status{ID: accountID, State: StateDeleted}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetAccountByID(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil // already gone; report DELETED
		}
		if err != nil {
			return err
		}

		now := s.Clock.Now()

		// 1. Logout timer. Runs before the supersession check on purpose:
		// a marker cleared here must not be reported as a remote logout.
		logoutLeft, err := s.expireSession(ctx, tx, &acct, now)
		if err != nil {
			return err
		}
		status.SecondsRemaining = logoutLeft

		// 2. Logged in, but not as this caller.
		if s.CheckRemoteLogout &&
			acct.SessionMarker != nil &&
			*acct.SessionMarker != requesterMarker {
			status.State = StateRemoteLogoutPending
			return nil
		}

		// 3. Logged in as this caller, timer still running.
		if logoutLeft > 0 {
			status.State = StateLocalLogoutPending
			return nil
		}

		// 4. Not logged in.
		if !s.AutoDelete {
			status.State = StateLoggedOut
			status.SecondsRemaining = 0
			return nil
		}

		deleteLeft := s.deleteSecondsLeft(acct, now)
		if deleteLeft > 0 {
			status.State = StateDeletePending
			status.SecondsRemaining = deleteLeft
			return nil
		}

		reportedID, err := s.deleteAccount(ctx, tx, acct)
		if err != nil {
			return err
		}
		status.ID = reportedID
		status.State = StateDeleted
		status.SecondsRemaining = 0
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	return status, nil
}

// expireSession returns the seconds left on the logout timer, clearing and
// persisting the session marker when the timer has run out. Zero when the
// account is not logged in.
func (s *LifecycleService) expireSession(ctx context.Context, tx store.Tx, acct *domain.Account, now time.Time) (int64, error) {
	if acct.SessionMarker == nil {
		return 0, nil
	}

	left := int64(0)
	if acct.LastLoginAt != nil {
		left = max(int64(s.LogoutWindow/time.Second)-(now.Unix()-acct.LastLoginAt.Unix()), 0)
	}
	// A marker without a login timestamp should not happen; treat it as
	// expired rather than immortal.

	if left > 0 {
		return left, nil
	}

	acct.SessionMarker = nil
	if err := tx.Accounts().SaveAccount(ctx, *acct); err != nil {
		return 0, err
	}

	slogx.FromContext(ctx).Info("session expired",
		"account_id", acct.ID,
		"name", acct.Name,
	)
	return 0, nil
}

// deleteSecondsLeft computes the remaining lifetime of a logged-out account.
// Inactivity counts from the last login, or from creation for accounts that
// never logged in.
func (s *LifecycleService) deleteSecondsLeft(acct domain.Account, now time.Time) int64 {
	baseline := acct.CreatedAt
	if acct.LastLoginAt != nil {
		baseline = *acct.LastLoginAt
	}

	allowed := int64((s.LogoutWindow + s.DeleteWindow) / time.Second)
	return max(allowed-(now.Unix()-baseline.Unix()), 0)
}

// deleteAccount removes the account and, when it carried the admin role,
// immediately recreates the admin account with default credentials inside
// the same transaction. Returns the id to report: the replacement's id for
// the admin, the original id otherwise.
func (s *LifecycleService) deleteAccount(ctx context.Context, tx store.Tx, acct domain.Account) (int64, error) {
	log := slogx.FromContext(ctx)

	wasAdmin := acct.HasRole(s.Admin.Role)

	if err := tx.Accounts().DeleteAccount(ctx, acct.ID); err != nil {
		return 0, err
	}
	log.Info("account deleted after inactivity",
		"account_id", acct.ID,
		"name", acct.Name,
		"was_admin", wasAdmin,
	)

	if !wasAdmin {
		return acct.ID, nil
	}

	fresh, err := s.Admin.recreate(ctx, tx, s.Admin.DefaultName, s.Admin.DefaultPassword)
	if err != nil {
		return 0, err
	}
	log.Info("admin account recreated with defaults", "account_id", fresh.ID)
	return fresh.ID, nil
}
