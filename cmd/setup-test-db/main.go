// Package main resets a development or test database and fills it with
// fixture users and feedback. It permanently deletes data when run.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"srcapp/internal/config"
	"srcapp/internal/database"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"github.com/lib/pq"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx := context.Background()

	verbose := flag.Bool("verbose", false, "enable verbose logging")
	dataFile := flag.String("data", "cmd/setup-test-db/testdata/seed.yaml", "fixture file to load")
	reset := flag.Bool("reset", true, "drop and recreate the database first")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if envURL := os.Getenv("TEST_DATABASE_URL"); envURL != "" {
		cfg.Database.URL = envURL
	}

	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.InfoLevel
	}
	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "setup-test-db", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	fixtures, err := loadFixtures(*dataFile)
	if err != nil {
		logger.Error(ctx, "Failed to load fixtures", err, map[string]interface{}{"file": *dataFile})
		os.Exit(1)
	}

	if *reset {
		if err := resetTestDatabase(ctx, cfg.Database.URL, logger); err != nil {
			logger.Error(ctx, "Failed to reset database", err, nil)
			os.Exit(1)
		}
	}

	db, err := database.NewManager(logger).InitDBWithConfig(ctx, cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to initialize database", err, nil)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService := services.NewUserServiceWithLogger(db, cfg, logger)
	feedbackStore := services.NewFeedbackService(db, logger)

	users, err := loadAndCreateUsers(ctx, fixtures.Users, userService, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create users", err, nil)
		os.Exit(1)
	}

	items, err := loadAndCreateFeedback(ctx, fixtures.Feedback, users, feedbackStore, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create feedback", err, nil)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d users and %d feedback items\n", len(users), items)
}

// resetTestDatabase drops and recreates the database named in databaseURL by
// connecting to the postgres maintenance database on the same server.
func resetTestDatabase(ctx context.Context, databaseURL string, logger *observability.Logger) error {
	adminURL, dbName, err := maintenanceURL(databaseURL)
	if err != nil {
		return err
	}

	adminDB, err := sql.Open("postgres", adminURL)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to connect to postgres database for drop/create: %v", err)
	}
	defer func() {
		if err := adminDB.Close(); err != nil {
			logger.Warn(ctx, "Failed to close admin connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	if _, err := adminDB.ExecContext(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`, dbName); err != nil {
		logger.Warn(ctx, "Failed to terminate connections", map[string]interface{}{"error": err.Error()})
	}

	if _, err := adminDB.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(dbName)); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to drop database: %v", err)
	}
	if _, err := adminDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName)); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create database: %v", err)
	}

	logger.Info(ctx, "Database reset complete", map[string]interface{}{"database": dbName})
	return nil
}

// maintenanceURL points databaseURL at the postgres database and returns the
// original database name.
func maintenanceURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", contextutils.WrapError(err, "invalid database URL")
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return "", "", contextutils.ErrorWithContextf("refusing to reset database %q", dbName)
	}
	u.Path = "/postgres"
	return u.String(), dbName, nil
}
