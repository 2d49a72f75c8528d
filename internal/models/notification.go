package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NotificationType names the lifecycle event behind a notification
type NotificationType string

const (
	NotificationFeedbackSubmitted  NotificationType = "feedback_submitted"
	NotificationFeedbackAssigned   NotificationType = "feedback_assigned"
	NotificationFeedbackUnassigned NotificationType = "feedback_unassigned"
	NotificationFeedbackResponse   NotificationType = "feedback_response"
)

// SendsEmail reports whether the event also goes out by email
func (t NotificationType) SendsEmail() bool {
	return t == NotificationFeedbackAssigned || t == NotificationFeedbackResponse
}

// Notification is an in-app inbox entry. FeedbackID is not a foreign key and
// may point at a deleted item.
type Notification struct {
	ID              int              `json:"id" db:"id"`
	RecipientUserID int              `json:"recipient_user_id" db:"recipient_user_id"`
	Title           string           `json:"title" db:"title"`
	Message         string           `json:"message" db:"message"`
	Type            NotificationType `json:"type" db:"type"`
	ActionURL       sql.NullString   `json:"action_url" db:"action_url"`
	FeedbackID      sql.NullInt64    `json:"feedback_id" db:"feedback_id"`
	IsRead          bool             `json:"is_read" db:"is_read"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// MarshalJSON flattens the sql.Null fields
func (n Notification) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID              int              `json:"id"`
		RecipientUserID int              `json:"recipient_user_id"`
		Title           string           `json:"title"`
		Message         string           `json:"message"`
		Type            NotificationType `json:"type"`
		ActionURL       *string          `json:"action_url"`
		FeedbackID      *int64           `json:"feedback_id"`
		IsRead          bool             `json:"is_read"`
		CreatedAt       time.Time        `json:"created_at"`
	}{
		ID:              n.ID,
		RecipientUserID: n.RecipientUserID,
		Title:           n.Title,
		Message:         n.Message,
		Type:            n.Type,
		ActionURL:       nullStringToPointer(n.ActionURL),
		FeedbackID:      nullInt64ToPointer(n.FeedbackID),
		IsRead:          n.IsRead,
		CreatedAt:       n.CreatedAt,
	})
}

// DispatchResult reports which channels delivered a notification
type DispatchResult struct {
	NotificationSent bool `json:"notification_sent"`
	EmailSent        bool `json:"email_sent"`
}

// NotificationContext carries the event details rendered into titles, bodies and emails
type NotificationContext struct {
	FeedbackID    int
	Category      Category
	Status        FeedbackStatus
	ActorName     string
	RecipientName string
	Message       string
	Response      string
	ActionURL     string
}
