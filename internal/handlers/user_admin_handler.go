package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"srcapp/internal/config"
	"srcapp/internal/middleware"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const usersPath = "/admin/users"

// UserAdminHandler handles user management operations
type UserAdminHandler struct {
	userService services.UserServiceInterface
	renderer    *PageRenderer
	cfg         *config.Config
	logger      *observability.Logger
}

// NewUserAdminHandler creates a new UserAdminHandler instance
func NewUserAdminHandler(userService services.UserServiceInterface, renderer *PageRenderer, cfg *config.Config, logger *observability.Logger) *UserAdminHandler {
	return &UserAdminHandler{
		userService: userService,
		renderer:    renderer,
		cfg:         cfg,
		logger:      logger,
	}
}

// UserCreateForm is the body of POST /admin/users
type UserCreateForm struct {
	Username  string `form:"username" json:"username"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Role      string `form:"role" json:"role"`
}

// RoleUpdateForm is the body of POST /admin/users/:id/role
type RoleUpdateForm struct {
	Role string `form:"role" json:"role"`
}

// grantableRoles lists the roles the actor may hand out
func grantableRoles(actor models.Actor) []models.Role {
	if actor.CanManageRoles() {
		return models.AllRoles
	}
	return []models.Role{models.RoleMember, models.RoleStudent}
}

func parseRoleField(raw string) (models.Role, error) {
	role, ok := models.ParseRole(raw)
	if !ok {
		return "", contextutils.ValidationErrorf("unknown role %q", strings.TrimSpace(raw))
	}
	return role, nil
}

// List handles GET /admin/users
func (h *UserAdminHandler) List(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_users")
	defer observability.FinishSpan(span, nil)

	users, err := h.userService.GetAllUsers(ctx)
	if err != nil {
		h.logger.Error(ctx, "Error retrieving users", err, nil)
		HandleAppError(c, contextutils.WrapError(err, "failed to retrieve users"))
		return
	}
	span.SetAttributes(attribute.Int("users.count", len(users)))

	roles := grantableRoles(middleware.CurrentActor(c))
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"users": users, "roles": roles})
		return
	}
	h.renderer.HTML(c, http.StatusOK, "admin_users.html", "Users", gin.H{
		"Users": users,
		"Roles": roles,
	})
}

// Create handles POST /admin/users
func (h *UserAdminHandler) Create(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_user")
	defer observability.FinishSpan(span, nil)

	var form UserCreateForm
	if err := c.ShouldBind(&form); err != nil {
		failAction(c, contextutils.ValidationErrorf("invalid user form"), usersPath)
		return
	}
	role, err := parseRoleField(form.Role)
	if err != nil {
		failAction(c, err, usersPath)
		return
	}
	span.SetAttributes(attribute.String("user.username", form.Username), observability.AttributeRole(string(role)))

	user, err := h.userService.CreateUser(ctx, middleware.CurrentActor(c), services.CreateUserInput{
		Username:  strings.TrimSpace(form.Username),
		Password:  form.Password,
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Email:     strings.TrimSpace(form.Email),
		Role:      role,
	})
	if err != nil {
		failAction(c, err, usersPath)
		return
	}
	succeedAction(c, http.StatusCreated, fmt.Sprintf("Created %s as %s.", user.Username, user.Role.Label()), usersPath, gin.H{"user": user})
}

// UpdateRole handles POST /admin/users/:id/role
func (h *UserAdminHandler) UpdateRole(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_user_role")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	var form RoleUpdateForm
	if err := c.ShouldBind(&form); err != nil {
		failAction(c, contextutils.ValidationErrorf("invalid role form"), usersPath)
		return
	}
	role, err := parseRoleField(form.Role)
	if err != nil {
		failAction(c, err, usersPath)
		return
	}
	span.SetAttributes(observability.AttributeUserID(id), observability.AttributeRole(string(role)))

	user, err := h.userService.UpdateUserRole(ctx, middleware.CurrentActor(c), id, role)
	if err != nil {
		failAction(c, err, usersPath)
		return
	}
	succeedAction(c, http.StatusOK, fmt.Sprintf("%s is now %s.", user.Username, user.Role.Label()), usersPath, gin.H{"user": user})
}

// Delete handles POST /admin/users/:id/delete
func (h *UserAdminHandler) Delete(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_user")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUserID(id))

	if err := h.userService.DeleteUser(ctx, middleware.CurrentActor(c), id); err != nil {
		failAction(c, err, usersPath)
		return
	}
	succeedAction(c, http.StatusOK, "User deleted.", usersPath, gin.H{"id": id})
}
