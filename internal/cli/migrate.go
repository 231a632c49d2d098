package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Apply pending schema migrations to the configured store.

Example:
  veracity migrate
  veracity migrate --store-driver pgx --store-dsn postgres://localhost/veracity`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()

		// Open applies pending migrations
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		applied, err := st.AppliedMigrations(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Schema up to date (%s)\n", cfg.Store.Driver)
		for _, name := range applied {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
