package commands

import (
	"context"
	"fmt"

	"srcapp/internal/models"
	"srcapp/internal/observability"
	contextutils "srcapp/internal/utils"

	"github.com/spf13/cobra"
)

// FeedbackMaintainer is the part of the feedback store the CLI needs
type FeedbackMaintainer interface {
	CountByStatus(ctx context.Context, submitterUserID int) (models.FeedbackStats, error)
	DeleteFeedbackByStatus(ctx context.Context, status models.FeedbackStatus) (int, error)
	DeleteAllFeedback(ctx context.Context) (int, error)
}

// FeedbackCommands returns the feedback maintenance commands
func FeedbackCommands(store FeedbackMaintainer, logger *observability.Logger) *cobra.Command {
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "Feedback maintenance commands",
		Long: `Feedback maintenance commands for the SRC portal.

Available commands:
  stats - Show item counts per status
  purge - Delete items by status`,
	}

	feedbackCmd.AddCommand(feedbackStatsCmd(store, logger))
	feedbackCmd.AddCommand(purgeCmd(store, logger))

	return feedbackCmd
}

func feedbackStatsCmd(store FeedbackMaintainer, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			stats, err := store.CountByStatus(ctx, 0)
			if err != nil {
				logger.Error(ctx, "Failed to count feedback", err, nil)
				return contextutils.WrapError(err, "failed to count feedback")
			}

			out := cmd.OutOrStdout()
			for _, status := range models.AllStatuses {
				fmt.Fprintf(out, "%-12s %d\n", status.Label(), stats.Count(status))
			}
			fmt.Fprintf(out, "%-12s %d\n", "Total", stats.Total)
			return nil
		},
	}
}

func purgeCmd(store FeedbackMaintainer, logger *observability.Logger) *cobra.Command {
	var statusName string
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete feedback items by status",
		Long: `Delete feedback items by status, or every item with --all.

Notifications that point at deleted items are kept.
Nothing is deleted unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if all == (statusName != "") {
				return contextutils.ErrorWithContextf("exactly one of --status or --all is required")
			}

			var status models.FeedbackStatus
			if !all {
				parsed, ok := models.ParseStatus(statusName)
				if !ok {
					return contextutils.ErrorWithContextf("unknown status %q", statusName)
				}
				status = parsed
			}

			if !yes {
				target := "all feedback"
				if !all {
					target = status.Label() + " feedback"
				}
				return contextutils.ErrorWithContextf("refusing to delete %s without --yes", target)
			}

			var deleted int
			var err error
			if all {
				deleted, err = store.DeleteAllFeedback(ctx)
			} else {
				deleted, err = store.DeleteFeedbackByStatus(ctx, status)
			}
			if err != nil {
				logger.Error(ctx, "Failed to purge feedback", err, map[string]interface{}{"status": string(status), "all": all})
				return contextutils.WrapError(err, "failed to purge feedback")
			}

			logger.Info(ctx, "Purged feedback", map[string]interface{}{"status": string(status), "all": all, "deleted": deleted})
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d feedback items\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusName, "status", "", "status to purge: pending, in_progress, resolved or rejected")
	cmd.Flags().BoolVar(&all, "all", false, "purge every item")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
