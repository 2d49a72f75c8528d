// Package middleware provides authentication and authorization middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	"srcapp/internal/config"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	contextutils "srcapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session and context keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
	// ActorKey holds the request's models.Actor in the gin context
	ActorKey = "actor"
	// RoleKey holds the actor's role name in the gin context
	RoleKey = "role"
)

// LoginPath is where unauthenticated browsers are sent
const LoginPath = "/login"

// UserLookup is the part of the user service LoadActor needs
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// SessionUserID reads the user id stored in the session
func SessionUserID(session sessions.Session) (int, bool) {
	switch v := session.Get(UserIDKey).(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		// JSON numbers are often stored as float64
		return int(v), v > 0
	}
	return 0, false
}

// LoadActor resolves the session user against the database on every request so
// that role changes and deletions apply immediately. Requests without a valid
// session get models.Guest.
func LoadActor(users UserLookup, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := models.Guest()
		session := sessions.Default(c)

		if userID, ok := SessionUserID(session); ok {
			user, err := users.GetUserByID(c.Request.Context(), userID)
			switch {
			case err != nil:
				if logger != nil {
					logger.Warn(c.Request.Context(), "Failed to load session user, continuing as guest", map[string]interface{}{
						"user_id": userID,
						"error":   err.Error(),
					})
				}
			case user == nil:
				// stale session: the account was deleted
				session.Delete(UserIDKey)
				session.Delete(UsernameKey)
				_ = session.Save()
			default:
				actor = models.NewActor(user.ID, user.Username, user.Role)
				c.Set(UserIDKey, user.ID)
				c.Set(UsernameKey, user.Username)
				c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), user.ID))
			}
		}

		c.Set(ActorKey, actor)
		c.Set(RoleKey, string(actor.Role))
		c.Next()
	}
}

// CurrentActor returns the actor set by LoadActor, or a guest when none was set
func CurrentActor(c *gin.Context) models.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Guest()
}

// denyUnauthenticated sends browsers to the login page and JSON clients a 401
func denyUnauthenticated(c *gin.Context) {
	if WantsJSON(c) {
		HandleAppError(c, contextutils.NewAppError(
			contextutils.ErrorCodeUnauthorized,
			contextutils.SeverityInfo,
			"Authentication required",
			"",
		))
		c.Abort()
		return
	}
	target := LoginPath
	if c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusSeeOther, target)
	c.Abort()
}

// RequireAuth returns a middleware that requires an authenticated actor
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentActor(c).IsAuthenticated() {
			denyUnauthenticated(c)
			return
		}
		c.Next()
	}
}

// RequireCapability returns a middleware that requires the actor to hold action.
// Guests are sent to log in; authenticated actors without the capability get 403.
func RequireCapability(action models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if actor.Can(action) {
			c.Next()
			return
		}
		if !actor.IsAuthenticated() {
			denyUnauthenticated(c)
			return
		}
		HandleAppError(c, contextutils.NewAppError(
			contextutils.ErrorCodeForbidden,
			contextutils.SeverityWarn,
			"You do not have permission to access this page",
			string(action),
		))
		c.Abort()
	}
}

// RequireFeature hides a route group behind a feature toggle
func RequireFeature(cfg *config.Config, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.IsFeatureEnabled(feature) {
			HandleAppError(c, contextutils.NewAppError(
				contextutils.ErrorCodeFeatureDisabled,
				contextutils.SeverityInfo,
				"This feature is not available",
				feature,
			))
			c.Abort()
			return
		}
		c.Next()
	}
}
