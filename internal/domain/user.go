package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is the verb half of a permission.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionList    Action = "list"
	ActionExecute Action = "execute"
	// ActionAdmin is the action wildcard: a permission carrying it grants
	// every action on its resource.
	ActionAdmin Action = "admin"
)

// WildcardResource matches any resource in a permission check.
const WildcardResource = "*"

// RoleType is the coarse classification of a role.
type RoleType string

const (
	RoleTypeUser       RoleType = "user"
	RoleTypeAdmin      RoleType = "admin"
	RoleTypeSuperAdmin RoleType = "super_admin"
)

// Permission grants an action on a resource. Resource "*" is a wildcard.
type Permission struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Action   Action    `json:"action"`
	Resource string    `json:"resource"`
}

// Role is a named bundle of permissions. Role identity is by id; roles are
// embedded fully hydrated on the users that carry them.
type Role struct {
	ID          uuid.UUID    `json:"id"`
	Type        RoleType     `json:"type"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// SuperAdminRole builds a role carrying the wildcard-resource permission for
// every action. The wildcard is modeled as data, not as a shortcut in the
// evaluator.
func SuperAdminRole() Role {
	actions := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionExecute}
	perms := make([]Permission, 0, len(actions))
	for _, a := range actions {
		perms = append(perms, Permission{
			ID:       uuid.New(),
			Name:     "super_admin_" + string(a),
			Action:   a,
			Resource: WildcardResource,
		})
	}
	return Role{
		ID:          uuid.New(),
		Type:        RoleTypeSuperAdmin,
		Name:        "Super Admin",
		Permissions: perms,
	}
}

// User is a tenant-scoped principal. (tenant_id, email) is unique;
// an inactive user cannot authenticate regardless of credentials.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	Roles        []Role     `json:"roles"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MFAEnabled   bool       `json:"mfa_enabled"`
	MFASecret    string     `json:"-"`
}

// Credentials is the request-time login value; it is never persisted.
type Credentials struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	TenantID uuid.UUID `json:"tenant_id"`
	MFACode  string    `json:"mfa_code,omitempty"`
}
