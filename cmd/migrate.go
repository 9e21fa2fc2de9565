package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamrecall/recall/db"
	"github.com/teamrecall/recall/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Long: `Applies the embedded schema migrations to the configured PostgreSQL
database. The server runs migrations on startup as well; this command
exists for provisioning a shared database ahead of first use.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
