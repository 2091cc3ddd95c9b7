package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/app"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

var recreateAdminCmd = &cobra.Command{
	Use:   "recreate-admin <name>",
	Short: "Replace the admin account with a fresh one",
	Long: `Deletes every account holding the admin role and creates a new admin with
the given name. The password is prompted for without echo. Existing admin
sessions are invalidated because the old account is gone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword()
		if err != nil {
			return err
		}

		application, err := app.New(app.LoadConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		ctx := slogx.WithContext(cmd.Context(), application.Logger())
		acct, err := application.AdminService().Recreate(ctx, args[0], password)
		if err != nil {
			return fmt.Errorf("failed to recreate admin account: %w", err)
		}

		fmt.Printf("Admin account %q recreated (id %d)\n", acct.Name, acct.ID)
		return nil
	},
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptPassword reads the new admin password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Print("New admin password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(pw), nil
}

func init() {
	rootCmd.AddCommand(recreateAdminCmd)
}
