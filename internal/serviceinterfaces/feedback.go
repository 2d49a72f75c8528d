package serviceinterfaces

import (
	"context"
	"time"

	"srcapp/internal/models"
)

// FeedbackRepository is the storage contract of the feedback workflow.
// Mutations return ErrRecordNotFound when the id does not exist.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, item *models.FeedbackItem) (*models.FeedbackItem, error)
	GetFeedbackByID(ctx context.Context, id int) (*models.FeedbackItem, error)
	ListFeedback(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackItem, error)
	// UpdateAssignment sets the assignee (0 clears it) together with the status
	UpdateAssignment(ctx context.Context, id, assigneeID int, status models.FeedbackStatus) (*models.FeedbackItem, error)
	RecordResponse(ctx context.Context, id int, resolution string, status models.FeedbackStatus, respondedBy int, respondedAt time.Time) (*models.FeedbackItem, error)
	DeleteFeedback(ctx context.Context, id int) error
	// CountByStatus counts every item, or only one registered submitter's when submitterUserID > 0
	CountByStatus(ctx context.Context, submitterUserID int) (models.FeedbackStats, error)
}
