package handlers

import (
	"errors"
	"strconv"

	"srcapp/internal/middleware"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthenticated indicates no current user could be determined
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrInvalidUserID indicates the stored user identifier is malformed
	ErrInvalidUserID = errors.New("invalid user id")
)

// GetCurrentUserID returns the current authenticated user's ID.
// It first checks the Gin context (set by LoadActor), then falls back to the
// session store.
func GetCurrentUserID(c *gin.Context) (int, error) {
	if rawID, exists := c.Get(middleware.UserIDKey); exists {
		if id, ok := rawID.(int); ok && id > 0 {
			return id, nil
		}
		return 0, ErrInvalidUserID
	}

	if id, ok := GetUserIDFromSession(c); ok {
		return id, nil
	}
	return 0, ErrUnauthenticated
}

// parseIDParam reads a positive integer path parameter
func parseIDParam(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, contextutils.NewAppError(
			contextutils.ErrorCodeRecordNotFound,
			contextutils.SeverityInfo,
			"Not found",
			name+"="+c.Param(name),
		)
	}
	return id, nil
}
