package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteListingHandler_CollectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/feedback", func(_ *gin.Context) {})
	router.POST("/feedback", func(_ *gin.Context) {})
	router.GET("/assets/*filepath", func(_ *gin.Context) {})

	admin := router.Group("/admin")
	{
		admin.GET("/users", func(_ *gin.Context) {})
		admin.POST("/users/:id/role", func(_ *gin.Context) {})
	}

	handler := NewRouteListingHandler(nil)
	handler.CollectRoutes(router)

	routes := handler.Routes()
	require.Len(t, routes, 4)

	keys := make([]string, 0, len(routes))
	for _, route := range routes {
		keys = append(keys, route.Method+" "+route.Path)
		assert.NotEmpty(t, route.HandlerName)
	}
	assert.Equal(t, []string{
		"GET /admin/users",
		"POST /admin/users/:id/role",
		"GET /feedback",
		"POST /feedback",
	}, keys)
}

func TestRouteListingHandler_JSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewRouteListingHandler(nil)
	router.GET("/admin/routes", handler.GetRouteListing)
	handler.CollectRoutes(router)

	req := httptest.NewRequest("GET", "/admin/routes?json=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var routes []RouteInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "/admin/routes", routes[0].Path)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
}
