package models

import "strings"

// Role is the closed set of portal roles. RoleGuest is never stored; it marks
// an unauthenticated visitor.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
	RoleStudent    Role = "student"
	RoleGuest      Role = "guest"
)

// AllRoles lists the roles that can be stored on a user, most privileged first
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleMember, RoleStudent}

// ParseRole accepts stored role names case-insensitively. Guest is not a stored role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// IsAssignable reports whether users with this role may hold feedback items
func (r Role) IsAssignable() bool {
	return r == RoleAdmin || r == RoleMember
}

// Label is the human readable role name
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleMember:
		return "Member"
	case RoleStudent:
		return "Student"
	default:
		return "Guest"
	}
}

// Action is a capability checked by the permission gate
type Action string

const (
	ActionCreateFeedback  Action = "feedback:create"
	ActionRespondFeedback Action = "feedback:respond"
	ActionAssignFeedback  Action = "feedback:assign"
	ActionDeleteFeedback  Action = "feedback:delete"
	ActionViewAllFeedback Action = "feedback:view_all"
	ActionManageUsers     Action = "users:manage"
	ActionManageRoles     Action = "roles:manage"
)

type actionSet map[Action]struct{}

func newActionSet(actions ...Action) actionSet {
	set := make(actionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

var managerActions = []Action{
	ActionCreateFeedback,
	ActionRespondFeedback,
	ActionAssignFeedback,
	ActionDeleteFeedback,
	ActionViewAllFeedback,
}

// capabilities is resolved once per request through NewActor
var capabilities = map[Role]actionSet{
	RoleSuperAdmin: newActionSet(append(managerActions, ActionManageUsers, ActionManageRoles)...),
	RoleAdmin:      newActionSet(append(managerActions, ActionManageUsers)...),
	RoleMember:     newActionSet(managerActions...),
	RoleStudent:    newActionSet(ActionCreateFeedback),
	RoleGuest:      newActionSet(ActionCreateFeedback),
}

// Actor is the request-scoped identity passed explicitly into every workflow call
type Actor struct {
	UserID   int
	Username string
	Role     Role
	actions  actionSet
}

// NewActor builds an actor for an authenticated user. Unknown roles get no capabilities.
func NewActor(userID int, username string, role Role) Actor {
	return Actor{UserID: userID, Username: username, Role: role, actions: capabilities[role]}
}

// Guest returns the actor used for unauthenticated requests
func Guest() Actor {
	return Actor{Role: RoleGuest, actions: capabilities[RoleGuest]}
}

// IsAuthenticated reports whether the actor maps to a registered user
func (a Actor) IsAuthenticated() bool {
	return a.UserID > 0 && a.Role != RoleGuest
}

// Can reports whether the actor holds the capability
func (a Actor) Can(action Action) bool {
	_, ok := a.actions[action]
	return ok
}

func (a Actor) CanCreate() bool      { return a.Can(ActionCreateFeedback) }
func (a Actor) CanRespond() bool     { return a.Can(ActionRespondFeedback) }
func (a Actor) CanAssign() bool      { return a.Can(ActionAssignFeedback) }
func (a Actor) CanDelete() bool      { return a.Can(ActionDeleteFeedback) }
func (a Actor) CanViewAll() bool     { return a.Can(ActionViewAllFeedback) }
func (a Actor) CanManageUsers() bool { return a.Can(ActionManageUsers) }
func (a Actor) CanManageRoles() bool { return a.Can(ActionManageRoles) }

// IsManager is true for super admins, admins and members
func (a Actor) IsManager() bool {
	return a.CanViewAll()
}

// SystemActor is used by the admin CLI and startup bootstrap. It holds every
// capability but never matches a stored user id.
func SystemActor() Actor {
	return Actor{Username: "system", Role: RoleSuperAdmin, actions: capabilities[RoleSuperAdmin]}
}
