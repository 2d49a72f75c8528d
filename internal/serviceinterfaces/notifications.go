package serviceinterfaces

import (
	"context"

	"srcapp/internal/models"
)

// NotificationStore persists in-app notifications. Mutations are scoped to the recipient.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListForUser(ctx context.Context, userID, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	MarkRead(ctx context.Context, userID, notificationID int) error
	MarkAllRead(ctx context.Context, userID int) (int, error)
	Dismiss(ctx context.Context, userID, notificationID int) error
}

// NotificationDispatcher turns lifecycle events into inbox rows and emails.
// Delivery failures are logged, never returned.
type NotificationDispatcher interface {
	Notify(ctx context.Context, event models.NotificationType, recipientUserID int, nctx models.NotificationContext) models.DispatchResult
	NotifyAddress(ctx context.Context, event models.NotificationType, address string, nctx models.NotificationContext) bool
	NotifyRoles(ctx context.Context, event models.NotificationType, roles []models.Role, nctx models.NotificationContext) int
}
