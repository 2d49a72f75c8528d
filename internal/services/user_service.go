package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"srcapp/internal/config"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"github.com/lib/pq"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	serviceinterfaces.UserDirectory
	CreateUser(ctx context.Context, actor models.Actor, input CreateUserInput) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	ListAssignableUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, actor models.Actor, userID int, role models.Role) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID int, newPassword string) error
	DeleteUser(ctx context.Context, actor models.Actor, userID int) error
	EnsureSuperAdminExists(ctx context.Context, username, password, email string) error
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ UserServiceInterface = (*UserService)(nil)

// userSelectFields contains all user fields for SELECT queries
const userSelectFields = `id, username, first_name, last_name, email, role, password_hash, created_at, updated_at`

// CreateUserInput is the admin form for a new account
type CreateUserInput struct {
	Username  string      `validate:"required,min=3,max=100"`
	Password  string      `validate:"required,min=8,max=72"`
	FirstName string      `validate:"max=100" label:"first name"`
	LastName  string      `validate:"max=100" label:"last name"`
	Email     string      `validate:"omitempty,email,max=255"`
	Role      models.Role `validate:"required"`
}

// scanUser scans a database row into a models.User struct
func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
		&role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return user, nil
}

// getUserByQuery is a shared method for getting a user by any query
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Warning: failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user from rows")
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// requireRoleAuthority checks that actor may hand out or take away role
func requireRoleAuthority(actor models.Actor, role models.Role) error {
	if !actor.CanManageUsers() {
		return permissionError("you are not allowed to manage users")
	}
	if (role == models.RoleSuperAdmin || role == models.RoleAdmin) && !actor.CanManageRoles() {
		return permissionError(fmt.Sprintf("only a super admin can manage %s accounts", role.Label()))
	}
	return nil
}

// CreateUser creates an account with a bcrypt password hash
func (s *UserService) CreateUser(ctx context.Context, actor models.Actor, input CreateUserInput) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		attribute.String("user.username", input.Username),
		observability.AttributeRole(string(input.Role)),
	)
	defer observability.FinishSpan(span, &err)

	input.Username = strings.TrimSpace(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)

	role, ok := models.ParseRole(string(input.Role))
	if !ok {
		return nil, contextutils.ValidationErrorf("unknown role %q", input.Role)
	}
	input.Role = role

	if err := requireRoleAuthority(actor, role); err != nil {
		return nil, err
	}
	if err := contextutils.ValidateStruct(input); err != nil {
		return nil, contextutils.ValidationErrorf("%s", contextutils.ValidationMessage(err))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	query := fmt.Sprintf(`INSERT INTO users (username, first_name, last_name, email, role, password_hash, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING %s`, userSelectFields)
	now := time.Now()
	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		input.Username, input.FirstName, input.LastName, nullableString(input.Email),
		string(role), string(hashedPassword), now, now))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordExists, "username or email already in use")
		}
		return nil, contextutils.WrapError(err, "failed to create user")
	}

	s.logger.Info(ctx, "Created user", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"by":       actor.Username,
	})
	return user, nil
}

// AuthenticateUser verifies user credentials and returns the user if valid
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	// Same error for unknown users and wrong passwords
	if user == nil || !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	user, err := s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userSelectFields), id)
	if err != nil {
		s.logger.Error(ctx, "Database error retrieving user", err, map[string]interface{}{"user_id": id})
		return nil, contextutils.WrapError(err, "failed to load user")
	}
	if user == nil {
		s.logger.Debug(ctx, "User not found in database", map[string]interface{}{"user_id": id})
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	user, err := s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE LOWER(username) = LOWER($1)", userSelectFields), strings.TrimSpace(username))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load user")
	}
	return user, nil
}

// GetAllUsers retrieves all users from the database
func (s *UserService) GetAllUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_all_users")
	defer observability.FinishSpan(span, &err)

	users, err := s.queryUsers(ctx, fmt.Sprintf("SELECT %s FROM users ORDER BY role, last_name, first_name, username", userSelectFields))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query all users")
	}
	return users, nil
}

// ListUsersByRoles returns the users holding any of the given roles
func (s *UserService) ListUsersByRoles(ctx context.Context, roles []models.Role) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users_by_roles", attribute.Int("roles.count", len(roles)))
	defer observability.FinishSpan(span, &err)

	if len(roles) == 0 {
		return []models.User{}, nil
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	users, err := s.queryUsers(ctx,
		fmt.Sprintf("SELECT %s FROM users WHERE role = ANY($1) ORDER BY first_name, last_name, username", userSelectFields),
		pq.Array(names))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users by role")
	}
	return users, nil
}

// ListAssignableUsers returns the admins and members offered in the assignee dropdown
func (s *UserService) ListAssignableUsers(ctx context.Context) ([]models.User, error) {
	return s.ListUsersByRoles(ctx, []models.Role{models.RoleAdmin, models.RoleMember})
}

var roleSuffix = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)\s*$`)

// parseAssigneeName splits "First Last(role)" into the name and the optional role hint
func parseAssigneeName(ref string) (name, roleHint string) {
	ref = strings.TrimSpace(ref)
	if m := roleSuffix.FindStringSubmatch(ref); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return ref, ""
}

func resolutionError(format string, args ...interface{}) error {
	return contextutils.NewAppError(contextutils.ErrorCodeUserResolution, contextutils.SeverityWarn, fmt.Sprintf(format, args...), "")
}

// ResolveAssignee maps a numeric id or a "First Last" / "First Last(role)" reference
// to exactly one admin or member.
func (s *UserService) ResolveAssignee(ctx context.Context, ref string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "resolve_assignee", attribute.String("assignee.ref", ref))
	defer observability.FinishSpan(span, &err)

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, resolutionError("no assignee given")
	}

	if id, convErr := strconv.Atoi(ref); convErr == nil {
		user, err := s.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, resolutionError("no user with id %d", id)
		}
		if !user.Role.IsAssignable() {
			return nil, resolutionError("%s is a %s and cannot be assigned feedback", user.FullName(), user.Role.Label())
		}
		return user, nil
	}

	name, hint := parseAssigneeName(ref)
	roles := []string{string(models.RoleAdmin), string(models.RoleMember)}
	if hint != "" {
		role, ok := models.ParseRole(hint)
		if !ok || !role.IsAssignable() {
			return nil, resolutionError("%q cannot be assigned feedback", hint)
		}
		roles = []string{string(role)}
	}

	query := fmt.Sprintf(`SELECT %s FROM users
              WHERE (LOWER(TRIM(first_name || ' ' || last_name)) = LOWER($1) OR LOWER(username) = LOWER($1))
                AND role = ANY($2)
              ORDER BY id LIMIT 2`, userSelectFields)
	matches, err := s.queryUsers(ctx, query, name, pq.Array(roles))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to look up assignee")
	}

	switch len(matches) {
	case 0:
		return nil, resolutionError("no admin or member named %q", name)
	case 1:
		return &matches[0], nil
	default:
		return nil, resolutionError("%q matches more than one user, pick from the list", name)
	}
}

// UpdateUserRole changes a user's role. Only super admins may grant or revoke
// the admin and super admin roles, and nobody changes their own role.
func (s *UserService) UpdateUserRole(ctx context.Context, actor models.Actor, userID int, role models.Role) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_role",
		observability.AttributeUserID(userID),
		observability.AttributeRole(string(role)),
	)
	defer observability.FinishSpan(span, &err)

	parsed, ok := models.ParseRole(string(role))
	if !ok {
		return nil, contextutils.ValidationErrorf("unknown role %q", role)
	}
	if actor.UserID == userID {
		return nil, permissionError("you cannot change your own role")
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}

	// both the current and the new role must be within the actor's authority
	if err := requireRoleAuthority(actor, user.Role); err != nil {
		return nil, err
	}
	if err := requireRoleAuthority(actor, parsed); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"user_id": userID})
			}
		}
	}()

	now := time.Now()
	updated, err := scanUser(tx.QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 RETURNING %s`, userSelectFields),
		string(parsed), now, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
		}
		return nil, contextutils.WrapError(err, "failed to update user role")
	}

	// assignees must hold an assignable role
	released := 0
	if !parsed.IsAssignable() {
		released, err = releaseAssignments(ctx, tx, userID, now)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}

	s.logger.Info(ctx, "User role changed", map[string]interface{}{
		"user_id":        userID,
		"old_role":       string(user.Role),
		"new_role":       string(parsed),
		"by":             actor.Username,
		"released_items": released,
	})
	return updated, nil
}

// releaseAssignments unassigns every feedback item held by userID. Items in
// progress go back to pending, the same as an explicit unassign.
func releaseAssignments(ctx context.Context, tx *sql.Tx, userID int, now time.Time) (int, error) {
	result, err := tx.ExecContext(ctx, `UPDATE feedback
		SET assignee_id = NULL,
		    status = CASE WHEN status = 'in_progress' THEN 'pending' ELSE status END,
		    updated_at = $2
		WHERE assignee_id = $1`, userID, now)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to release feedback assignments")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}
	return int(n), nil
}

// detachSubmissions turns a user's own submissions into direct ones. The
// name and email snapshot on the row stays, so the item keeps its contact.
func detachSubmissions(ctx context.Context, tx *sql.Tx, userID int) (int, error) {
	result, err := tx.ExecContext(ctx, `UPDATE feedback
		SET submitter_kind = 'direct', submitter_user_id = NULL
		WHERE submitter_user_id = $1 AND submitter_kind = 'registered'`, userID)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to detach feedback submissions")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}
	return int(n), nil
}

// UpdateUserPassword updates a user's password
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if newPassword == "" {
		return contextutils.ValidationErrorf("password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hashedPassword), time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update user password")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}

	s.logger.Info(ctx, "Password updated successfully", map[string]interface{}{"user_id": userID})
	return nil
}

// DeleteUser removes an account. Feedback it was assigned is released back
// to pending and feedback it submitted becomes a direct submission; responder
// columns fall back to NULL through the foreign key.
func (s *UserService) DeleteUser(ctx context.Context, actor models.Actor, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "delete_user", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if actor.UserID == userID {
		return permissionError("you cannot delete your own account")
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to check if user exists")
	}
	if user == nil {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}
	if err := requireRoleAuthority(actor, user.Role); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"user_id": userID})
			}
		}
	}()

	released, err := releaseAssignments(ctx, tx, userID, time.Now())
	if err != nil {
		return err
	}
	detached, err := detachSubmissions(ctx, tx, userID)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete user")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit transaction")
	}

	s.logger.Info(ctx, "User deleted successfully", map[string]interface{}{
		"user_id":             userID,
		"by":                  actor.Username,
		"released_items":      released,
		"detached_submissions": detached,
	})
	return nil
}

// EnsureSuperAdminExists creates the bootstrap super admin if it doesn't exist,
// and otherwise makes sure its password and role match the configuration.
func (s *UserService) EnsureSuperAdminExists(ctx context.Context, username, password, email string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_super_admin_exists", attribute.String("admin.username", username))
	defer observability.FinishSpan(span, &err)

	if username == "" {
		return contextutils.ErrorWithContextf("admin username cannot be empty")
	}
	if password == "" {
		return contextutils.ErrorWithContextf("admin password cannot be empty")
	}

	existingUser, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return contextutils.WrapError(err, "failed to check if admin user exists")
	}

	if existingUser == nil {
		_, err := s.CreateUser(ctx, models.SystemActor(), CreateUserInput{
			Username:  username,
			Password:  password,
			FirstName: "Council",
			LastName:  "Administrator",
			Email:     email,
			Role:      models.RoleSuperAdmin,
		})
		if err != nil {
			return contextutils.WrapError(err, "failed to create admin user")
		}
		s.logger.Info(ctx, "Created admin user", map[string]interface{}{"username": username})
		return nil
	}

	passwordMatches := existingUser.PasswordHash.Valid &&
		bcrypt.CompareHashAndPassword([]byte(existingUser.PasswordHash.String), []byte(password)) == nil
	if !passwordMatches {
		if err := s.UpdateUserPassword(ctx, existingUser.ID, password); err != nil {
			return contextutils.WrapError(err, "failed to update admin user password")
		}
		s.logger.Info(ctx, "Updated password for admin user", map[string]interface{}{"username": username})
	}

	if existingUser.Role != models.RoleSuperAdmin {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`,
			string(models.RoleSuperAdmin), time.Now(), existingUser.ID); err != nil {
			s.logger.Warn(ctx, "Warning: Failed to restore super admin role", map[string]interface{}{"error": err.Error()})
		}
	}

	if !existingUser.Email.Valid && email != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET email = $1, updated_at = $2 WHERE id = $3`,
			email, time.Now(), existingUser.ID); err != nil {
			s.logger.Warn(ctx, "Warning: Failed to update admin email", map[string]interface{}{"error": err.Error()})
		}
	}

	return nil
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	// PostgreSQL error code 23505 is for unique constraint violations
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
