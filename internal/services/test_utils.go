//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"srcapp/internal/config"
	"srcapp/internal/database"
	"srcapp/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup migrates the database at TEST_DATABASE_URL and empties it
func SharedTestDBSetup(t *testing.T) *sql.DB {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDBWithConfig(context.Background(), config.DatabaseConfig{
		URL:          databaseURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)

	CleanupTestDatabase(db, t)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// cleanupDatabase truncates every table and restarts the id sequences
func cleanupDatabase(db *sql.DB, logger *observability.Logger) {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to begin cleanup transaction", err)
		}
		return
	}

	if _, err = tx.ExecContext(ctx, "TRUNCATE TABLE notifications, feedback, users RESTART IDENTITY CASCADE"); err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to truncate tables", err)
		}
		_ = tx.Rollback()
		return
	}

	if err = tx.Commit(); err != nil && logger != nil {
		logger.Error(ctx, "Failed to commit cleanup transaction", err)
	}
}

// CleanupTestDatabase cleans up the database for integration tests
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	cleanupDatabase(db, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))
}
