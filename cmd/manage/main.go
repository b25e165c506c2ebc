// Command manage holds the operational tasks that do not belong in the API
// process: schema migrations and bootstrapping the first administrator.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"ticketdesk/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:          "manage",
		Short:        "ticketdesk management commands",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newCreateAdminCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Get().Errorf("command failed: %v", err)
		os.Exit(1)
	}
}
