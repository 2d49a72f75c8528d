package services

import (
	"context"
	"database/sql"
	"time"

	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultInboxLimit caps how many notifications the inbox page loads
const DefaultInboxLimit = 50

// NotificationService stores in-app notifications in PostgreSQL.
type NotificationService struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ serviceinterfaces.NotificationStore = (*NotificationService)(nil)

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(db *sql.DB, logger *observability.Logger) *NotificationService {
	return &NotificationService{db: db, logger: logger}
}

// CreateNotification inserts one unread notification. A single INSERT, safe to retry.
func (s *NotificationService) CreateNotification(ctx context.Context, n *models.Notification) (result0 *models.Notification, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "create_notification",
		observability.AttributeUserID(n.RecipientUserID),
		observability.AttributeNotificationType(string(n.Type)),
	)
	defer observability.FinishSpan(span, &err)

	query := `INSERT INTO notifications (recipient_user_id, title, message, type, action_url, feedback_id, is_read, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7) RETURNING id, created_at`
	created := *n
	created.IsRead = false
	err = s.db.QueryRowContext(ctx, query,
		n.RecipientUserID, n.Title, n.Message, string(n.Type), n.ActionURL, n.FeedbackID, time.Now(),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert notification")
	}
	return &created, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID, limit int) (result0 []models.Notification, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "list_for_user", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, recipient_user_id, title, message, type, action_url, feedback_id, is_read, created_at
              FROM notifications WHERE recipient_user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query notifications")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.RecipientUserID, &n.Title, &n.Message, &typ, &n.ActionURL, &n.FeedbackID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "scan notification")
		}
		n.Type = models.NotificationType(typ)
		list = append(list, n)
	}
	return list, rows.Err()
}

// UnreadCount feeds the navigation badge.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int) (result0 int, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "unread_count", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_user_id = $1 AND is_read = FALSE`, userID).Scan(&count); err != nil {
		return 0, contextutils.WrapError(err, "failed to count unread notifications")
	}
	return count, nil
}

func (s *NotificationService) execForRecipient(ctx context.Context, query string, userID, notificationID int) error {
	result, err := s.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update notification")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	// another user's notification looks exactly like a missing one
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "notification %d not found", notificationID)
	}
	return nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "mark_read",
		observability.AttributeUserID(userID),
		attribute.Int("notification.id", notificationID),
	)
	defer observability.FinishSpan(span, &err)

	return s.execForRecipient(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_user_id = $2`, userID, notificationID)
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (result0 int, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "mark_all_read", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to mark notifications read")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}
	return int(rowsAffected), nil
}

// Dismiss deletes one of the user's notifications.
func (s *NotificationService) Dismiss(ctx context.Context, userID, notificationID int) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "dismiss",
		observability.AttributeUserID(userID),
		attribute.Int("notification.id", notificationID),
	)
	defer observability.FinishSpan(span, &err)

	return s.execForRecipient(ctx, `DELETE FROM notifications WHERE id = $1 AND recipient_user_id = $2`, userID, notificationID)
}
