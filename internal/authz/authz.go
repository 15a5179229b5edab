// Package authz implements Authorization (C3): ensure(caller, resource,
// permission) evaluated against self-service carve-outs, then the caller's
// Role looked up through the Resource Store (spec §4.3).
package authz

import (
	"context"
	"strings"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/logger"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/store"
)

// Authorizer evaluates (caller, resource, permission) tuples.
type Authorizer struct {
	roles *store.RoleStore
}

func New(roles *store.RoleStore) *Authorizer {
	return &Authorizer{roles: roles}
}

// Target identifies the specific resource instance a permission check
// applies to, needed for the self-service carve-out (step 1): a caller
// acting on their own User or Session record bypasses the role lookup for
// Read/Update/Delete.
type Target struct {
	Type models.ResourceType
	// OwnerID is the id the resource is scoped to: the User's own id, or a
	// Session's user_id. Empty when the resource isn't owned by anyone
	// (Role, Repository, Pool), in which case self-service never applies.
	OwnerID string
}

// Ensure evaluates (caller, target, perm) per spec §4.3's four-step order:
//  1. Self-service carve-out for User/Session Read/Update/Delete on self.
//  2. Role lookup via the Resource Store; missing role denies.
//  3. Exact (resource_type, permission) tuple match.
//  4. Custom(name) permissions, used by the Session Orchestrator.
func (a *Authorizer) Ensure(ctx context.Context, caller models.Caller, target Target, perm models.Permission) *apperrors.AppError {
	if caller.Admin {
		return nil
	}

	if selfService(target, caller, perm) {
		return nil
	}

	if caller.RoleID == "" {
		return apperrors.Unauthorized(string(target.Type), perm.String())
	}

	role, err := a.roles.Get(ctx, caller.RoleID)
	if err != nil {
		return err
	}
	if role == nil {
		return apperrors.Unauthorized(string(target.Type), perm.String())
	}

	if role.Has(target.Type, perm) {
		return nil
	}

	logger.Authz().Debug().
		Str("caller", caller.ID).
		Str("resource", string(target.Type)).
		Str("permission", perm.String()).
		Msg("authorization denied")
	return apperrors.Unauthorized(string(target.Type), perm.String())
}

func selfService(target Target, caller models.Caller, perm models.Permission) bool {
	if target.Type != models.ResourceUser && target.Type != models.ResourceSession {
		return false
	}
	if target.OwnerID == "" || !strings.EqualFold(target.OwnerID, caller.ID) {
		return false
	}
	switch perm.Kind {
	case models.PermRead, models.PermUpdate, models.PermDelete:
		return true
	default:
		return false
	}
}
