// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"srcapp/internal/config"
	"srcapp/internal/database"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"
)

// Service names registered in the container
const (
	ServiceUser          = "user"
	ServiceFeedbackStore = "feedback_store"
	ServiceNotifications = "notifications"
	ServiceEmail         = "email"
	ServiceDispatcher    = "dispatcher"
	ServiceCaptcha       = "captcha"
	ServiceWorkflow      = "workflow"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetFeedbackStore() (*services.FeedbackService, error)
	GetNotificationStore() (serviceinterfaces.NotificationStore, error)
	GetEmailService() (serviceinterfaces.EmailService, error)
	GetCaptchaService() (*services.CaptchaService, error)
	GetFeedbackWorkflow() (services.FeedbackWorkflowInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureSuperAdmin(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize opens the database, runs migrations and wires every service
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.initializeWithDB(db)
	return nil
}

// InitializeWithDB wires every service on an already open database. Used by
// the admin CLI and tests.
func (sc *ServiceContainer) InitializeWithDB(db *sql.DB) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.initializeWithDB(db)
}

func (sc *ServiceContainer) initializeWithDB(db *sql.DB) {
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})
	sc.initializeServices()
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, ServiceUser)
}

// GetFeedbackStore returns the feedback repository
func (sc *ServiceContainer) GetFeedbackStore() (*services.FeedbackService, error) {
	return GetServiceAs[*services.FeedbackService](sc, ServiceFeedbackStore)
}

// GetNotificationStore returns the in-app notification store
func (sc *ServiceContainer) GetNotificationStore() (serviceinterfaces.NotificationStore, error) {
	return GetServiceAs[serviceinterfaces.NotificationStore](sc, ServiceNotifications)
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (serviceinterfaces.EmailService, error) {
	return GetServiceAs[serviceinterfaces.EmailService](sc, ServiceEmail)
}

// GetCaptchaService returns the captcha service
func (sc *ServiceContainer) GetCaptchaService() (*services.CaptchaService, error) {
	return GetServiceAs[*services.CaptchaService](sc, ServiceCaptcha)
}

// GetFeedbackWorkflow returns the feedback lifecycle engine
func (sc *ServiceContainer) GetFeedbackWorkflow() (services.FeedbackWorkflowInterface, error) {
	return GetServiceAs[services.FeedbackWorkflowInterface](sc, ServiceWorkflow)
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs the shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err, nil)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices() {
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services[ServiceUser] = userService

	feedbackStore := services.NewFeedbackService(sc.db, sc.logger)
	sc.services[ServiceFeedbackStore] = feedbackStore

	notificationStore := services.NewNotificationService(sc.db, sc.logger)
	sc.services[ServiceNotifications] = notificationStore

	emailService := services.CreateEmailService(sc.cfg, sc.logger)
	sc.services[ServiceEmail] = emailService

	// Dispatcher depends on the inbox, the user directory and email
	dispatcher := services.NewNotificationDispatcher(notificationStore, userService, emailService, sc.cfg, sc.logger)
	sc.services[ServiceDispatcher] = dispatcher

	captcha := services.NewCaptchaService()
	sc.services[ServiceCaptcha] = captcha

	workflow := services.NewFeedbackWorkflow(feedbackStore, userService, dispatcher, captcha, sc.cfg, sc.logger)
	sc.services[ServiceWorkflow] = workflow
}

// EnsureSuperAdmin creates the configured super admin if it doesn't exist
func (sc *ServiceContainer) EnsureSuperAdmin(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureSuperAdminExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword, sc.cfg.Server.AdminEmail)
}
