// Package authorization enforces role-based access to sensitive
// org-scoped operations. Document CRUD is open to any member; API key
// and audit surfaces go through the enforcer.
package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks that actor ("user:<id>", "api_key:<id>" or
	// "system") may perform action on object within the organization.
	Authorize(ctx context.Context, actor, orgID, object, action string) error
}

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
)
