package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"srcapp/internal/models"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAuthRouter(t *testing.T, actor models.Actor, userService *MockUserService) *gin.Engine {
	router := newHandlerTestRouter(t, actor)
	handler := NewAuthHandler(userService, NewPageRenderer(nil, testLogger()), testConfig(), testLogger())
	router.GET("/login", handler.LoginPage)
	router.POST("/login", handler.Login)
	router.POST("/logout", handler.Logout)
	router.GET("/auth/status", handler.Status)
	return router
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/feedback"},
		{"/feedback/12", "/feedback/12"},
		{"/notifications?x=1", "/notifications?x=1"},
		{"https://evil.example", "/feedback"},
		{"//evil.example/path", "/feedback"},
		{"/\\evil.example", "/feedback"},
		{"feedback", "/feedback"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, safeNext(tt.in))
		})
	}
}

func TestLoginPage(t *testing.T) {
	t.Run("guest sees the form with next carried over", func(t *testing.T) {
		router := setupAuthRouter(t, models.Guest(), new(MockUserService))
		w := get(router, "/login?next=/feedback/3", "text/html")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `name="next" value="/feedback/3"`)
	})

	t.Run("logged in user is sent on", func(t *testing.T) {
		router := setupAuthRouter(t, memberActor, new(MockUserService))
		w := get(router, "/login?next=/notifications", "text/html")

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/notifications", w.Header().Get("Location"))
	})
}

func TestLogin(t *testing.T) {
	user := &models.User{ID: 3, Username: "bob", Role: models.RoleMember}

	t.Run("success redirects to next and sets the session", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "secret123").Return(user, nil)
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postForm(router, "/login", url.Values{"username": {" bob "}, "password": {"secret123"}, "next": {"/feedback/9"}})

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/feedback/9", w.Header().Get("Location"))
		assert.NotEmpty(t, w.Result().Cookies())
		userService.AssertExpectations(t)
	})

	t.Run("open redirect is ignored", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "secret123").Return(user, nil)
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postForm(router, "/login", url.Values{"username": {"bob"}, "password": {"secret123"}, "next": {"//evil.example"}})

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/feedback", w.Header().Get("Location"))
	})

	t.Run("json success", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "secret123").Return(user, nil)
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postJSON(router, "/login", `{"username":"bob","password":"secret123"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "bob", body["user"].(map[string]interface{})["username"])
	})

	t.Run("wrong password re-renders the form", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "nope").Return(nil, contextutils.ErrInvalidCredentials)
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postForm(router, "/login", url.Values{"username": {"bob"}, "password": {"nope"}})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid username or password")
		assert.Contains(t, w.Body.String(), `value="bob"`)
	})

	t.Run("wrong password json", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "nope").Return(nil, contextutils.ErrInvalidCredentials)
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postJSON(router, "/login", `{"username":"bob","password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), string(contextutils.ErrorCodeInvalidCredentials))
	})

	t.Run("missing fields", func(t *testing.T) {
		router := setupAuthRouter(t, models.Guest(), new(MockUserService))

		w := postForm(router, "/login", url.Values{"username": {"bob"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Enter your username and password")
	})

	t.Run("backend failure is a 500", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("AuthenticateUser", mock.Anything, "bob", "secret123").Return(nil, errors.New("connection refused"))
		router := setupAuthRouter(t, models.Guest(), userService)

		w := postJSON(router, "/login", `{"username":"bob","password":"secret123"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestLogout(t *testing.T) {
	router := setupAuthRouter(t, memberActor, new(MockUserService))

	w := postForm(router, "/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = postJSON(router, "/logout", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Logout successful"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	t.Run("guest", func(t *testing.T) {
		router := setupAuthRouter(t, models.Guest(), new(MockUserService))
		w := get(router, "/auth/status", "application/json")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"authenticated":false,"user":null}`, w.Body.String())
	})

	t.Run("member", func(t *testing.T) {
		userService := new(MockUserService)
		userService.On("GetUserByID", mock.Anything, memberActor.UserID).
			Return(&models.User{ID: memberActor.UserID, Username: "bob", Role: models.RoleMember}, nil)
		router := setupAuthRouter(t, memberActor, userService)

		w := get(router, "/auth/status", "application/json")

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, "member", body["user"].(map[string]interface{})["role"])
	})
}
