package service

import (
	"context"
	"testing"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store/drivers/sqlite"
	"github.com/sandcastle-auth/sandcastle/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newAdminEnv(t *testing.T) (*AdminService, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	return &AdminService{
		Store:           st,
		Clock:           &FixedClock{Time: testBase},
		Role:            domain.RoleAdmin,
		DefaultName:     "admin",
		DefaultPassword: "admin-default-pw",
	}, st
}

func TestAdminRecreateFromEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, st := newAdminEnv(t)

	acct, err := svc.Recreate(ctx, "root", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "root", acct.Name)
	require.True(t, acct.HasRole(domain.RoleAdmin))
	require.True(t, acct.HasRole(domain.RoleUser), "role normalisation adds the base role")
	require.NoError(t, cryptox.VerifyPassword("hunter2", acct.PasswordHash))

	admins, err := st.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
}

func TestAdminRecreateReplacesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, st := newAdminEnv(t)

	old, err := svc.Recreate(ctx, "root", "hunter2")
	require.NoError(t, err)

	fresh, err := svc.Recreate(ctx, "root2", "hunter3")
	require.NoError(t, err)
	require.NotEqual(t, old.ID, fresh.ID)

	_, err = st.Accounts().GetAccountByID(ctx, old.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	admins, err := st.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, "root2", admins[0].Name)
}

func TestAdminRecreateLeavesRegularAccountsAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, st := newAdminEnv(t)

	userID, err := st.Accounts().CreateAccount(ctx, domain.Account{
		Name:      "alice",
		Roles:     []string{domain.RoleUser},
		CreatedAt: testBase,
	})
	require.NoError(t, err)

	_, err = svc.Recreate(ctx, "root", "hunter2")
	require.NoError(t, err)

	_, err = st.Accounts().GetAccountByID(ctx, userID)
	require.NoError(t, err)
}

func TestAdminEnsure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates default admin on empty store", func(t *testing.T) {
		svc, st := newAdminEnv(t)

		require.NoError(t, svc.Ensure(ctx))

		admins, err := st.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		require.Equal(t, "admin", admins[0].Name)
	})

	t.Run("keeps an existing admin untouched", func(t *testing.T) {
		svc, st := newAdminEnv(t)

		existing, err := svc.Recreate(ctx, "root", "hunter2")
		require.NoError(t, err)

		require.NoError(t, svc.Ensure(ctx))

		admins, err := st.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		require.Equal(t, existing.ID, admins[0].ID)
	})

	t.Run("collapses duplicate admins to one", func(t *testing.T) {
		svc, st := newAdminEnv(t)

		for _, name := range []string{"dup1", "dup2"} {
			_, err := st.Accounts().CreateAccount(ctx, domain.Account{
				Name:      name,
				Roles:     []string{domain.RoleUser, domain.RoleAdmin},
				CreatedAt: testBase.Add(-time.Hour),
			})
			require.NoError(t, err)
		}

		require.NoError(t, svc.Ensure(ctx))

		admins, err := st.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		require.Equal(t, "admin", admins[0].Name)
	})
}
