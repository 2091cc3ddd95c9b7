package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the account service HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(app.LoadConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		return application.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
