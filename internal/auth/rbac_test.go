package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/domain"
)

func userWithPermission(action domain.Action, resource string) *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Roles: []domain.Role{{
			ID:   uuid.New(),
			Type: domain.RoleTypeUser,
			Name: "test-role",
			Permissions: []domain.Permission{{
				ID:       uuid.New(),
				Name:     "test-permission",
				Action:   action,
				Resource: resource,
			}},
		}},
	}
}

func TestPermittedExactMatch(t *testing.T) {
	user := userWithPermission(domain.ActionRead, "posts")

	assert.True(t, auth.Permitted(user, domain.ActionRead, "posts"))
	assert.False(t, auth.Permitted(user, domain.ActionDelete, "posts"))
	assert.False(t, auth.Permitted(user, domain.ActionRead, "other"))
}

func TestPermittedAdminActionWildcard(t *testing.T) {
	user := userWithPermission(domain.ActionAdmin, "posts")

	assert.True(t, auth.Permitted(user, domain.ActionRead, "posts"))
	assert.True(t, auth.Permitted(user, domain.ActionDelete, "posts"))
	assert.False(t, auth.Permitted(user, domain.ActionRead, "other"))
}

func TestPermittedResourceWildcard(t *testing.T) {
	user := userWithPermission(domain.ActionRead, domain.WildcardResource)

	assert.True(t, auth.Permitted(user, domain.ActionRead, "posts"))
	assert.True(t, auth.Permitted(user, domain.ActionRead, "anything"))
	assert.False(t, auth.Permitted(user, domain.ActionDelete, "posts"))
}

func TestPermittedSuperAdmin(t *testing.T) {
	user := &domain.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Roles:    []domain.Role{domain.SuperAdminRole()},
	}

	for _, action := range []domain.Action{
		domain.ActionCreate, domain.ActionRead, domain.ActionUpdate,
		domain.ActionDelete, domain.ActionList, domain.ActionExecute,
	} {
		assert.True(t, auth.Permitted(user, action, "any-resource"), "action %s", action)
	}
}

func TestPermittedNoRoles(t *testing.T) {
	user := &domain.User{ID: uuid.New()}
	assert.False(t, auth.Permitted(user, domain.ActionRead, "posts"))
}

func TestPermittedDependsOnlyOnRoles(t *testing.T) {
	role := domain.Role{
		ID:   uuid.New(),
		Type: domain.RoleTypeUser,
		Name: "shared",
		Permissions: []domain.Permission{{
			ID: uuid.New(), Name: "read-posts", Action: domain.ActionRead, Resource: "posts",
		}},
	}
	a := &domain.User{ID: uuid.New(), Roles: []domain.Role{role}}
	b := &domain.User{ID: uuid.New(), Roles: []domain.Role{role}}

	assert.Equal(t,
		auth.Permitted(a, domain.ActionRead, "posts"),
		auth.Permitted(b, domain.ActionRead, "posts"))
	assert.Equal(t,
		auth.Permitted(a, domain.ActionDelete, "posts"),
		auth.Permitted(b, domain.ActionDelete, "posts"))
}

func TestCheckPermissionCaches(t *testing.T) {
	svc := auth.NewRBACService()
	user := userWithPermission(domain.ActionRead, "posts")

	assert.True(t, svc.CheckPermission(user, domain.ActionRead, "posts"))

	// The decision is cached by (user, action, resource): mutating the
	// user's roles without invalidation leaves the old answer in place.
	user.Roles = nil
	assert.True(t, svc.CheckPermission(user, domain.ActionRead, "posts"))

	svc.InvalidateUser(user.ID)
	assert.False(t, svc.CheckPermission(user, domain.ActionRead, "posts"))
}

func TestInvalidateAll(t *testing.T) {
	svc := auth.NewRBACService()
	user := userWithPermission(domain.ActionRead, "posts")

	assert.True(t, svc.CheckPermission(user, domain.ActionRead, "posts"))
	user.Roles = nil
	svc.Invalidate()
	assert.False(t, svc.CheckPermission(user, domain.ActionRead, "posts"))
}

func TestInvalidateUserLeavesOthers(t *testing.T) {
	svc := auth.NewRBACService()
	alice := userWithPermission(domain.ActionRead, "posts")
	bob := userWithPermission(domain.ActionRead, "posts")

	assert.True(t, svc.CheckPermission(alice, domain.ActionRead, "posts"))
	assert.True(t, svc.CheckPermission(bob, domain.ActionRead, "posts"))

	alice.Roles = nil
	bob.Roles = nil
	svc.InvalidateUser(alice.ID)

	assert.False(t, svc.CheckPermission(alice, domain.ActionRead, "posts"))
	// Bob's stale decision survives: only Alice was invalidated.
	assert.True(t, svc.CheckPermission(bob, domain.ActionRead, "posts"))
}
