package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"srcapp/internal/config"
	"srcapp/internal/middleware"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"
	"srcapp/internal/version"
)

// NewRouter creates the portal router with all middleware, pages and form endpoints
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	workflow services.FeedbackWorkflowInterface,
	notificationStore serviceinterfaces.NotificationStore,
	captcha *services.CaptchaService,
	logger *observability.Logger,
) (*gin.Engine, error) {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, middleware.DefaultErrorRecoveryConfig()))
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before sessions and auth)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "src-portal",
			"version": version.Version,
			"commit":  version.Commit,
		})
	})

	// OpenTelemetry tracing with error attributes on failed requests
	router.Use(observability.GinMiddlewareWithErrorHandling("src-portal")...)

	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = len(cfg.Server.CORSOrigins) > 0
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store, err := newSessionStore(cfg.Server.SessionSecret)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create session store")
	}
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load page templates")
	}
	router.SetHTMLTemplate(tmpl)

	assets, err := AssetsFS()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load static assets")
	}
	router.StaticFS("/assets", http.FS(assets))

	router.Use(middleware.LoadActor(userService, logger))

	// Initialize handlers
	renderer := NewPageRenderer(notificationStore, logger)
	authHandler := NewAuthHandler(userService, renderer, cfg, logger)
	feedbackHandler := NewFeedbackHandler(workflow, userService, captcha, renderer, cfg, logger)
	notificationHandler := NewNotificationHandler(notificationStore, renderer, logger)
	userAdminHandler := NewUserAdminHandler(userService, renderer, cfg, logger)
	routeListing := NewRouteListingHandler(renderer)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/feedback")
	})

	router.GET(middleware.LoginPath, authHandler.LoginPage)
	router.POST(middleware.LoginPath, authHandler.Login)
	router.POST("/logout", authHandler.Logout)
	router.GET("/auth/status", authHandler.Status)

	feedback := router.Group("/feedback")
	feedback.Use(middleware.RequireFeature(cfg, config.FeatureFeedback))
	{
		// Guests may submit; everything else needs an account
		feedback.GET("/new", middleware.RequireCapability(models.ActionCreateFeedback), feedbackHandler.NewForm)
		feedback.POST("", middleware.RequireCapability(models.ActionCreateFeedback), feedbackHandler.Submit)

		feedback.GET("", middleware.RequireAuth(), feedbackHandler.List)
		feedback.GET("/:id", middleware.RequireAuth(), feedbackHandler.Detail)
		feedback.POST("/:id/assign", middleware.RequireAuth(), feedbackHandler.Assign)
		feedback.POST("/:id/respond", middleware.RequireAuth(), feedbackHandler.Respond)
		feedback.POST("/:id/delete", middleware.RequireAuth(), feedbackHandler.Delete)
	}

	notifications := router.Group(inboxPath)
	notifications.Use(middleware.RequireAuth())
	{
		notifications.GET("", notificationHandler.Inbox)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/:id/dismiss", notificationHandler.Dismiss)
	}

	admin := router.Group("/admin")
	{
		users := admin.Group("/users")
		users.Use(middleware.RequireCapability(models.ActionManageUsers))
		{
			users.GET("", userAdminHandler.List)
			users.POST("", userAdminHandler.Create)
			users.POST("/:id/role", userAdminHandler.UpdateRole)
			users.POST("/:id/delete", userAdminHandler.Delete)
		}

		admin.GET("/routes", middleware.RequireCapability(models.ActionManageRoles), routeListing.GetRouteListing)
	}

	router.NoRoute(func(c *gin.Context) {
		HandleAppError(c, contextutils.NewAppError(contextutils.ErrorCodeRecordNotFound, contextutils.SeverityInfo, "Page not found", ""))
	})

	routeListing.CollectRoutes(router)

	return router, nil
}

// requestLogger logs every request through the observability logger
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}
		if role, ok := c.Get(middleware.RoleKey); ok {
			fields["user.role"] = role
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
