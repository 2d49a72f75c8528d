package handlers

import (
	"net/http"

	"srcapp/internal/middleware"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleAppError reports err as JSON or as the HTML error page
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError reports a form error as a 400
func HandleValidationError(c *gin.Context, message string) {
	HandleAppError(c, contextutils.NewAppError(
		contextutils.ErrorCodeValidationFailed,
		contextutils.SeverityWarn,
		message,
		"",
	))
}

// isFormError reports whether the person who submitted a form can fix err themselves
func isFormError(err error) bool {
	switch middleware.StatusForError(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// failAction answers a failed form POST. Browsers go back to redirectTo with
// the message flashed when they can fix the input; everything else gets the
// error page or a JSON error body.
func failAction(c *gin.Context, err error, redirectTo string) {
	if middleware.WantsJSON(c) || redirectTo == "" || !isFormError(err) {
		HandleAppError(c, err)
		return
	}
	_ = c.Error(err)
	addFlash(c, "error", contextutils.UserMessage(err))
	c.Redirect(http.StatusSeeOther, redirectTo)
}

// succeedAction answers a successful form POST with payload for JSON clients
// and a flash plus redirect for browsers
func succeedAction(c *gin.Context, status int, message, redirectTo string, payload gin.H) {
	if middleware.WantsJSON(c) {
		if payload == nil {
			payload = gin.H{}
		}
		payload["success"] = true
		payload["message"] = message
		c.JSON(status, payload)
		return
	}
	if message != "" {
		addFlash(c, "success", message)
	}
	c.Redirect(http.StatusSeeOther, redirectTo)
}
