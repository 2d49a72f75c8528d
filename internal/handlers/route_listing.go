package handlers

import (
	"net/http"
	"sort"
	"strings"

	"srcapp/internal/middleware"
	"srcapp/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouteInfo represents information about a single route
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
}

// RouteListingHandler lists the registered routes for super admins
type RouteListingHandler struct {
	renderer *PageRenderer
	routes   []RouteInfo
}

// NewRouteListingHandler creates a new route listing handler
func NewRouteListingHandler(renderer *PageRenderer) *RouteListingHandler {
	return &RouteListingHandler{
		renderer: renderer,
		routes:   []RouteInfo{},
	}
}

// CollectRoutes extracts all routes from a Gin engine, sorted by path then method
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}

	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") || strings.HasPrefix(route.Path, "/assets/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{
			Method:      route.Method,
			Path:        route.Path,
			HandlerName: route.Handler,
		})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		if h.routes[i].Path == h.routes[j].Path {
			return h.routes[i].Method < h.routes[j].Method
		}
		return h.routes[i].Path < h.routes[j].Path
	})
}

// Routes returns the collected routes
func (h *RouteListingHandler) Routes() []RouteInfo {
	return h.routes
}

// GetRouteListing handles GET /admin/routes
func (h *RouteListingHandler) GetRouteListing(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing")
	defer observability.FinishSpan(span, nil)

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	if middleware.WantsJSON(c) || c.Query("json") == "true" {
		c.JSON(http.StatusOK, h.routes)
		return
	}
	h.renderer.HTML(c, http.StatusOK, "routes.html", "Routes", gin.H{"Routes": h.routes})
}
