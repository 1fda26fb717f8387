// Package ownership decides whether a user may act on a project.
//
// The vector store consults a Guard before every operation. Guards report a
// reason for denial (ErrProjectNotFound, ErrNotOwner); the store never shows
// that reason to its callers.
package ownership

import (
	"context"
	"errors"
)

var (
	// ErrProjectNotFound indicates the project is not registered.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNotOwner indicates the project belongs to another user.
	ErrNotOwner = errors.New("user does not own project")

	// ErrProjectExists indicates the project is already registered to another user.
	ErrProjectExists = errors.New("project already registered")

	// ErrInvalidID indicates an empty project or user ID.
	ErrInvalidID = errors.New("project and user IDs are required")
)

// Guard confirms that userID owns projectID. Any error denies access.
type Guard interface {
	CheckOwnership(ctx context.Context, projectID, userID string) error
}

// Claimer is implemented by guards that hand unclaimed projects to their
// first user. Claims only live in memory, so the store replays the
// provenance of its persisted projects through ClaimProject at startup.
type Claimer interface {
	ClaimProject(ctx context.Context, projectID, userID string) error
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, projectID, userID string) error

// CheckOwnership calls f.
func (f GuardFunc) CheckOwnership(ctx context.Context, projectID, userID string) error {
	return f(ctx, projectID, userID)
}

// AllowAll grants every request. Only for single-user deployments and tests.
var AllowAll Guard = GuardFunc(func(context.Context, string, string) error { return nil })
