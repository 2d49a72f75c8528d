// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"

	contextutils "srcapp/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database inspection commands
func DatabaseCommands(db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database inspection commands",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the database the CLI is connected to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "URL:        %s\n", maskDatabaseURL(databaseURL))
			fmt.Fprintf(out, "Connection: %s\n", getDatabaseInfo(ctx, db))

			version, err := schemaVersion(ctx, db)
			if err != nil {
				return contextutils.WrapError(err, "failed to read schema version")
			}
			fmt.Fprintf(out, "Schema:     %s\n", version)
			return nil
		},
	})

	return dbCmd
}

// schemaVersion reads the migrate bookkeeping table
func schemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version int64
	var dirty bool
	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return "not migrated", nil
	}
	if err != nil {
		return "", err
	}
	if dirty {
		return fmt.Sprintf("%d (dirty)", version), nil
	}
	return fmt.Sprintf("%d", version), nil
}
