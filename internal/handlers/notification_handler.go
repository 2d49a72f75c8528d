package handlers

import (
	"fmt"
	"net/http"

	"srcapp/internal/middleware"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
)

const inboxPath = "/notifications"

// NotificationHandler serves the in-app inbox. Every action is scoped to the
// logged-in recipient.
type NotificationHandler struct {
	store    serviceinterfaces.NotificationStore
	renderer *PageRenderer
	logger   *observability.Logger
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(store serviceinterfaces.NotificationStore, renderer *PageRenderer, logger *observability.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, renderer: renderer, logger: logger}
}

// recipientID resolves the inbox owner or writes a 401
func recipientID(c *gin.Context) (int, bool) {
	userID, err := GetCurrentUserID(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

// Inbox handles GET /notifications
func (h *NotificationHandler) Inbox(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "notification_inbox")
	defer observability.FinishSpan(span, nil)

	userID, ok := recipientID(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	list, err := h.store.ListForUser(ctx, userID, 0)
	if err != nil {
		h.logger.Error(ctx, "Failed to load notifications", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	if middleware.WantsJSON(c) {
		unread := 0
		for _, n := range list {
			if !n.IsRead {
				unread++
			}
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list, "unread_count": unread})
		return
	}
	h.renderer.HTML(c, http.StatusOK, "notifications.html", "Notifications", gin.H{
		"Notifications": list,
	})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_notification_read")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	userID, ok := recipientID(c)
	if !ok {
		return
	}
	if err := h.store.MarkRead(ctx, userID, id); err != nil {
		failAction(c, err, inboxPath)
		return
	}
	succeedAction(c, http.StatusOK, "", inboxPath, gin.H{"id": id})
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_all_notifications_read")
	defer observability.FinishSpan(span, nil)

	userID, ok := recipientID(c)
	if !ok {
		return
	}
	changed, err := h.store.MarkAllRead(ctx, userID)
	if err != nil {
		failAction(c, err, inboxPath)
		return
	}
	message := "No unread notifications."
	if changed > 0 {
		message = fmt.Sprintf("Marked %d notifications as read.", changed)
	}
	succeedAction(c, http.StatusOK, message, inboxPath, gin.H{"updated": changed})
}

// Dismiss handles POST /notifications/:id/dismiss
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "dismiss_notification")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	userID, ok := recipientID(c)
	if !ok {
		return
	}
	if err := h.store.Dismiss(ctx, userID, id); err != nil {
		failAction(c, err, inboxPath)
		return
	}
	succeedAction(c, http.StatusOK, "Notification dismissed.", inboxPath, gin.H{"id": id})
}
