package handlers

import (
	"srcapp/internal/middleware"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"

	"github.com/gin-gonic/gin"
)

// PageRenderer fills in what every page layout needs: the actor, pending
// flashes and the unread notification badge
type PageRenderer struct {
	notifications serviceinterfaces.NotificationStore
	logger        *observability.Logger
}

// NewPageRenderer creates a PageRenderer. notifications may be nil.
func NewPageRenderer(notifications serviceinterfaces.NotificationStore, logger *observability.Logger) *PageRenderer {
	return &PageRenderer{notifications: notifications, logger: logger}
}

// HTML renders the named page
func (r *PageRenderer) HTML(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	actor := middleware.CurrentActor(c)
	data["Title"] = title
	data["Actor"] = actor
	data["Flashes"] = popFlashes(c)

	if actor.IsAuthenticated() && r.notifications != nil {
		count, err := r.notifications.UnreadCount(c.Request.Context(), actor.UserID)
		if err != nil {
			r.logger.Warn(c.Request.Context(), "Failed to count unread notifications", map[string]interface{}{
				"user_id": actor.UserID,
				"error":   err.Error(),
			})
		}
		data["UnreadCount"] = count
	}

	c.HTML(status, name, data)
}
