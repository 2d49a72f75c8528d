// Package main provides the admin CLI for the SRC feedback portal.
package main

import (
	"context"
	"fmt"
	"os"

	"srcapp/cmd/adm/commands"
	"srcapp/internal/config"
	"srcapp/internal/database"
	"srcapp/internal/di"
	"srcapp/internal/observability"
	"srcapp/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx := context.Background()

	// Fall back to a config file next to the binary or in the working directory
	if os.Getenv(config.ConfigFileEnv) == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The CLI never exports telemetry
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "src-admin", zapcore.ErrorLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// No migrations here: the server owns the schema
	db, err := database.NewManager(logger).InitDBWithoutMigrations(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	container := di.NewServiceContainer(cfg, logger)
	container.InitializeWithDB(db)
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService, err := container.GetUserService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get user service: %v\n", err)
		os.Exit(1)
	}
	feedbackStore, err := container.GetFeedbackStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get feedback store: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "SRC portal administration tool",
		Long: `SRC portal administration tool

Manages accounts and feedback records directly against the portal database.`,
		Version:      version.String(),
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger))
	rootCmd.AddCommand(commands.FeedbackCommands(feedbackStore, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(db, cfg.Database.URL))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
