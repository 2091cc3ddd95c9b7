package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sandcastle",
	Short: "Sandcastle is a self-cleaning demo account service",
	Long: `Sandcastle runs a public demo account service where every session expires
after a short window and idle accounts wash away on their own. The privileged
admin account is recreated with default credentials whenever it is deleted.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
