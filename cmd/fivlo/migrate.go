package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gumwoo/fivlo/internal/persistence/sqlstore"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded SQL migrations to the configured database.

Examples:
  fivlo migrate
  fivlo migrate --status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
			if err != nil {
				return err
			}
			store, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: dialect, DSN: cfg.Database.DSN})
			if err != nil {
				return err
			}
			defer store.Close()

			if !statusOnly {
				applied, err := store.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				fmt.Fprintf(out, "applied %d migration(s)\n", applied)
			}

			status, err := store.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			fmt.Fprintf(out, "pending: %d\n", len(status.Pending))
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "report applied and pending migrations without changing the database")
	return cmd
}
