package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"srcapp/internal/models"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupNotificationRouter(t *testing.T, actor models.Actor, store *MockNotificationStore) *gin.Engine {
	router := newHandlerTestRouter(t, actor)
	handler := NewNotificationHandler(store, NewPageRenderer(store, testLogger()), testLogger())
	router.GET("/notifications", handler.Inbox)
	router.POST("/notifications/read-all", handler.MarkAllRead)
	router.POST("/notifications/:id/read", handler.MarkRead)
	router.POST("/notifications/:id/dismiss", handler.Dismiss)
	return router
}

func sampleNotifications() []models.Notification {
	return []models.Notification{
		{
			ID:              2,
			RecipientUserID: memberActor.UserID,
			Title:           "Feedback assigned to you",
			Message:         "Feedback #5 (Welfare) was assigned to you.",
			Type:            models.NotificationFeedbackAssigned,
			ActionURL:       sql.NullString{String: "/feedback/5", Valid: true},
			FeedbackID:      sql.NullInt64{Int64: 5, Valid: true},
			CreatedAt:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:              1,
			RecipientUserID: memberActor.UserID,
			Title:           "New feedback submitted",
			Message:         "Feedback #4 needs attention.",
			Type:            models.NotificationFeedbackSubmitted,
			IsRead:          true,
			CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestNotificationInbox(t *testing.T) {
	t.Run("html with unread badge", func(t *testing.T) {
		store := new(MockNotificationStore)
		store.On("ListForUser", mock.Anything, memberActor.UserID, 0).Return(sampleNotifications(), nil)
		store.On("UnreadCount", mock.Anything, memberActor.UserID).Return(1, nil)
		router := setupNotificationRouter(t, memberActor, store)

		w := get(router, "/notifications", "text/html")

		require.Equal(t, http.StatusOK, w.Code)
		html := w.Body.String()
		assert.Contains(t, html, `<a href="/feedback/5">Feedback assigned to you</a>`)
		assert.Contains(t, html, `action="/notifications/2/read"`)
		assert.NotContains(t, html, `action="/notifications/1/read"`)
		assert.Contains(t, html, `<span class="badge">1</span>`)
		store.AssertExpectations(t)
	})

	t.Run("badge failure is ignored", func(t *testing.T) {
		store := new(MockNotificationStore)
		store.On("ListForUser", mock.Anything, memberActor.UserID, 0).Return([]models.Notification{}, nil)
		store.On("UnreadCount", mock.Anything, memberActor.UserID).Return(0, contextutils.ErrorWithContextf("db down"))
		router := setupNotificationRouter(t, memberActor, store)

		w := get(router, "/notifications", "text/html")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "You have no notifications.")
	})

	t.Run("json", func(t *testing.T) {
		store := new(MockNotificationStore)
		store.On("ListForUser", mock.Anything, memberActor.UserID, 0).Return(sampleNotifications(), nil)
		router := setupNotificationRouter(t, memberActor, store)

		w := get(router, "/notifications", "application/json")

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Notifications []map[string]interface{} `json:"notifications"`
			UnreadCount   int                      `json:"unread_count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Notifications, 2)
		assert.Equal(t, 1, body.UnreadCount)
	})

	t.Run("store failure", func(t *testing.T) {
		store := new(MockNotificationStore)
		store.On("ListForUser", mock.Anything, memberActor.UserID, 0).
			Return(nil, contextutils.NewAppError(contextutils.ErrorCodeDatabaseConnection, contextutils.SeverityError, "database unavailable", ""))
		router := setupNotificationRouter(t, memberActor, store)

		w := get(router, "/notifications", "application/json")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestNotificationMarkRead(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("MarkRead", mock.Anything, memberActor.UserID, 2).Return(nil)
	router := setupNotificationRouter(t, memberActor, store)

	w := postForm(router, "/notifications/2/read", url.Values{})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/notifications", w.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestNotificationMarkRead_OtherUsersNotification(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("MarkRead", mock.Anything, memberActor.UserID, 99).
		Return(contextutils.NewAppError(contextutils.ErrorCodeRecordNotFound, contextutils.SeverityInfo, "Notification not found", ""))
	router := setupNotificationRouter(t, memberActor, store)

	w := postJSON(router, "/notifications/99/read", `{}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationMarkAllRead(t *testing.T) {
	tests := []struct {
		name    string
		changed int
		message string
	}{
		{"some unread", 3, "Marked 3 notifications as read."},
		{"nothing unread", 0, "No unread notifications."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockNotificationStore)
			store.On("MarkAllRead", mock.Anything, memberActor.UserID).Return(tt.changed, nil)
			router := setupNotificationRouter(t, memberActor, store)

			w := postJSON(router, "/notifications/read-all", `{}`)

			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["message"])
			assert.Equal(t, float64(tt.changed), body["updated"])
		})
	}
}

func TestNotificationDismiss(t *testing.T) {
	store := new(MockNotificationStore)
	store.On("Dismiss", mock.Anything, memberActor.UserID, 2).Return(nil)
	router := setupNotificationRouter(t, memberActor, store)

	w := postForm(router, "/notifications/2/dismiss", url.Values{})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/notifications", w.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestNotificationInbox_NoRecipient(t *testing.T) {
	store := new(MockNotificationStore)
	router := setupNotificationRouter(t, models.Guest(), store)

	w := get(router, "/notifications", "application/json")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	store.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything, mock.Anything)
}
