package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/store"
)

func newTestAuthorizer() *Authorizer {
	gw := k8s.NewWithClientset(fake.NewSimpleClientset())
	return New(store.NewRoleStore(gw, "playground", nil))
}

func TestEnsureAdminBypassesEverything(t *testing.T) {
	a := newTestAuthorizer()
	caller := models.Caller{ID: "root", Admin: true}
	err := a.Ensure(context.Background(), caller, Target{Type: models.ResourceRole}, models.Permission{Kind: models.PermDelete})
	assert.Nil(t, err)
}

func TestEnsureSelfServiceReadOwnSession(t *testing.T) {
	a := newTestAuthorizer()
	caller := models.Caller{ID: "alice"}
	err := a.Ensure(context.Background(), caller, Target{Type: models.ResourceSession, OwnerID: "alice"}, models.Permission{Kind: models.PermRead})
	assert.Nil(t, err)
}

func TestEnsureSelfServiceDoesNotCoverCreate(t *testing.T) {
	a := newTestAuthorizer()
	caller := models.Caller{ID: "alice"}
	err := a.Ensure(context.Background(), caller, Target{Type: models.ResourceSession, OwnerID: "alice"}, models.Permission{Kind: models.PermCreate})
	require.NotNil(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, err.Kind)
}

func TestEnsureDeniesWithoutRole(t *testing.T) {
	a := newTestAuthorizer()
	caller := models.Caller{ID: "bob"}
	err := a.Ensure(context.Background(), caller, Target{Type: models.ResourcePool}, models.Permission{Kind: models.PermRead})
	require.NotNil(t, err)
}

func TestEnsureGrantsViaRoleTuple(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()
	require.Nil(t, a.roles.Put(ctx, models.Role{
		ID: "viewer",
		Permissions: []models.PermissionTuple{
			{Resource: models.ResourcePool, Permission: models.Permission{Kind: models.PermRead}},
		},
	}))

	caller := models.Caller{ID: "carol", RoleID: "viewer"}
	err := a.Ensure(ctx, caller, Target{Type: models.ResourcePool}, models.Permission{Kind: models.PermRead})
	assert.Nil(t, err)
}

func TestEnsureChecksCustomPermissionByName(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()
	require.Nil(t, a.roles.Put(ctx, models.Role{
		ID: "power-user",
		Permissions: []models.PermissionTuple{
			{Resource: models.ResourceSession, Permission: models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionDuration}},
		},
	}))

	caller := models.Caller{ID: "dave", RoleID: "power-user"}
	err := a.Ensure(ctx, caller, Target{Type: models.ResourceSession, OwnerID: "dave"},
		models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionDuration})
	assert.Nil(t, err)

	err = a.Ensure(ctx, caller, Target{Type: models.ResourceSession, OwnerID: "dave"},
		models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionPoolAffinity})
	assert.NotNil(t, err)
}
