package handlers

import (
	"net/http"
	"strings"

	"srcapp/internal/config"
	"srcapp/internal/middleware"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// defaultLandingPath is where users land after logging in
const defaultLandingPath = "/feedback"

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService services.UserServiceInterface
	renderer    *PageRenderer
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, renderer *PageRenderer, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		renderer:    renderer,
		config:      cfg,
		logger:      logger,
	}
}

// LoginForm is the login form body
type LoginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Next     string `form:"next" json:"next"`
}

// safeNext only allows redirects back into this site
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return defaultLandingPath
	}
	return next
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "login_page")
	defer observability.FinishSpan(span, nil)

	if middleware.CurrentActor(c).IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, safeNext(c.Query("next")))
		return
	}
	h.renderer.HTML(c, http.StatusOK, "login.html", "Log in", gin.H{
		"Next": safeNext(c.Query("next")),
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.loginFailed(c, form, http.StatusBadRequest, "Enter your username and password")
		return
	}
	form.Username = strings.TrimSpace(form.Username)

	span.SetAttributes(
		attribute.String("auth.username", form.Username),
		attribute.Bool("auth.password_provided", form.Password != ""),
	)

	user, err := h.userService.AuthenticateUser(ctx, form.Username, form.Password)
	if err != nil {
		if contextutils.GetErrorCode(err) != contextutils.ErrorCodeInvalidCredentials {
			h.logger.Error(ctx, "Authentication failed for user", err, map[string]interface{}{"username": form.Username})
			HandleAppError(c, err)
			return
		}
		h.logger.Info(ctx, "Rejected login", map[string]interface{}{"username": form.Username})
		h.loginFailed(c, form, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", user.ID),
		attribute.String("user.role", string(user.Role)),
	)

	if err := startSession(c, user.ID, user.Username); err != nil {
		h.logger.Error(ctx, "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	h.logger.Info(ctx, "User logged in", map[string]interface{}{"user_id": user.ID, "role": string(user.Role)})

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Login successful",
			"user":    user,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, safeNext(form.Next))
}

func (h *AuthHandler) loginFailed(c *gin.Context, form LoginForm, status int, message string) {
	if middleware.WantsJSON(c) {
		code := contextutils.ErrorCodeInvalidCredentials
		if status == http.StatusBadRequest {
			code = contextutils.ErrorCodeValidationFailed
		}
		HandleAppError(c, contextutils.NewAppError(code, contextutils.SeverityInfo, message, ""))
		return
	}
	h.renderer.HTML(c, status, "login.html", "Log in", gin.H{
		"Error":    message,
		"Username": form.Username,
		"Next":     safeNext(form.Next),
	})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	if userID, ok := GetUserIDFromSession(c); ok {
		span.SetAttributes(attribute.Int("user.id", userID))
	}

	if err := endSession(c); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
		return
	}
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// Status handles GET /auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "status")
	defer observability.FinishSpan(span, nil)

	actor := middleware.CurrentActor(c)
	span.SetAttributes(attribute.Bool("auth.authenticated", actor.IsAuthenticated()))
	if !actor.IsAuthenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	user, err := h.userService.GetUserByID(ctx, actor.UserID)
	if err != nil {
		h.logger.Error(ctx, "Error getting user by ID", err, map[string]interface{}{"user_id": actor.UserID})
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": user != nil,
		"user":          user,
	})
}
