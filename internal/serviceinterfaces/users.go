package serviceinterfaces

import (
	"context"

	"srcapp/internal/models"
)

// UserDirectory is the read side of user storage needed by the feedback workflow
// and the notification dispatcher.
type UserDirectory interface {
	// GetUserByID returns nil, nil when no such user exists
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsersByRoles(ctx context.Context, roles []models.Role) ([]models.User, error)
	// ResolveAssignee maps an id or "First Last(role)" reference to exactly one admin or member
	ResolveAssignee(ctx context.Context, ref string) (*models.User, error)
}
