package ownership

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Registry is an in-memory project to owner mapping.
type Registry struct {
	mu     sync.RWMutex
	owners map[string]string // projectID -> userID

	// autoRegister lets the first user to touch an unknown project claim it.
	autoRegister bool
}

// NewRegistry creates a registry seeded with owners (projectID -> userID).
func NewRegistry(owners map[string]string, autoRegister bool) *Registry {
	r := &Registry{
		owners:       make(map[string]string, len(owners)),
		autoRegister: autoRegister,
	}
	maps.Copy(r.owners, owners)
	return r
}

// Register assigns projectID to userID. Registering a project to its
// current owner again is a no-op.
func (r *Registry) Register(ctx context.Context, projectID, userID string) error {
	if projectID == "" || userID == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[projectID]; ok {
		if owner == userID {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrProjectExists, projectID)
	}
	r.owners[projectID] = userID
	return nil
}

// ClaimProject records a claim restored from persisted data. It only
// applies when auto-registration is on; otherwise the configured owners are
// authoritative and the claim is ignored.
func (r *Registry) ClaimProject(ctx context.Context, projectID, userID string) error {
	if !r.autoRegister {
		return nil
	}
	return r.Register(ctx, projectID, userID)
}

// CheckOwnership implements Guard.
func (r *Registry) CheckOwnership(ctx context.Context, projectID, userID string) error {
	if projectID == "" || userID == "" {
		return ErrInvalidID
	}

	r.mu.RLock()
	owner, ok := r.owners[projectID]
	r.mu.RUnlock()

	if !ok {
		if !r.autoRegister {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		// Another request may have claimed it since the read.
		if err := r.Register(ctx, projectID, userID); err != nil {
			return fmt.Errorf("%w: %s", ErrNotOwner, projectID)
		}
		return nil
	}
	if owner != userID {
		return fmt.Errorf("%w: %s", ErrNotOwner, projectID)
	}
	return nil
}
