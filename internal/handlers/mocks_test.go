package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"srcapp/internal/config"
	"srcapp/internal/middleware"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService for testing
type MockUserService struct {
	mock.Mock
}

var _ services.UserServiceInterface = (*MockUserService)(nil)

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsersByRoles(ctx context.Context, roles []models.Role) ([]models.User, error) {
	args := m.Called(ctx, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) ResolveAssignee(ctx context.Context, ref string) (*models.User, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, actor models.Actor, input services.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) ListAssignableUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) UpdateUserRole(ctx context.Context, actor models.Actor, userID int, role models.Role) (*models.User, error) {
	args := m.Called(ctx, actor, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actor models.Actor, userID int) error {
	args := m.Called(ctx, actor, userID)
	return args.Error(0)
}

func (m *MockUserService) EnsureSuperAdminExists(ctx context.Context, username, password, email string) error {
	args := m.Called(ctx, username, password, email)
	return args.Error(0)
}

// MockFeedbackWorkflow for testing
type MockFeedbackWorkflow struct {
	mock.Mock
}

var _ services.FeedbackWorkflowInterface = (*MockFeedbackWorkflow)(nil)

func (m *MockFeedbackWorkflow) Submit(ctx context.Context, actor models.Actor, input services.SubmitFeedbackInput) (*models.FeedbackItem, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackWorkflow) Assign(ctx context.Context, actor models.Actor, feedbackID int, assigneeRef, status string) (*models.FeedbackItem, error) {
	args := m.Called(ctx, actor, feedbackID, assigneeRef, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackWorkflow) Respond(ctx context.Context, actor models.Actor, feedbackID int, input services.RespondInput) (*models.FeedbackItem, error) {
	args := m.Called(ctx, actor, feedbackID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackWorkflow) Delete(ctx context.Context, actor models.Actor, feedbackID int) error {
	args := m.Called(ctx, actor, feedbackID)
	return args.Error(0)
}

func (m *MockFeedbackWorkflow) List(ctx context.Context, actor models.Actor, filter models.FeedbackFilter) ([]models.FeedbackItem, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackWorkflow) Get(ctx context.Context, actor models.Actor, feedbackID int) (*models.FeedbackItem, error) {
	args := m.Called(ctx, actor, feedbackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackWorkflow) Stats(ctx context.Context, actor models.Actor) models.FeedbackStats {
	args := m.Called(ctx, actor)
	return args.Get(0).(models.FeedbackStats)
}

func (m *MockFeedbackWorkflow) Categories() []models.Category {
	args := m.Called()
	return args.Get(0).([]models.Category)
}

// MockNotificationStore for testing
type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationStore) ListForUser(ctx context.Context, userID, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationStore) UnreadCount(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, userID, notificationID int) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationStore) MarkAllRead(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationStore) Dismiss(ctx context.Context, userID, notificationID int) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

var (
	superAdminActor = models.NewActor(1, "root", models.RoleSuperAdmin)
	adminActor      = models.NewActor(2, "alice", models.RoleAdmin)
	memberActor     = models.NewActor(3, "bob", models.RoleMember)
	studentActor    = models.NewActor(4, "sam", models.RoleStudent)
)

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Features.EnableFeedback = true
	return cfg
}

// newHandlerTestRouter builds a router with sessions, the real page templates
// and the given actor in place of LoadActor
func newHandlerTestRouter(t *testing.T, actor models.Actor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store, err := newSessionStore("test-secret")
	require.NoError(t, err)
	router.Use(sessions.Sessions("test-session", store))

	tmpl, err := LoadTemplates()
	require.NoError(t, err)
	router.SetHTMLTemplate(tmpl)

	router.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, actor)
		if actor.IsAuthenticated() {
			c.Set(middleware.UserIDKey, actor.UserID)
		}
		c.Next()
	})
	return router
}

// postForm sends a urlencoded form the way a browser would
func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// postJSON sends a JSON body and asks for JSON back
func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// get sends a GET with the given Accept header
func get(router *gin.Engine, path, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
