package trusty

import (
	"context"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Tenant is an isolation boundary owning users, roles, and namespaces.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Products  []string  `json:"products"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an actor known by the opaque external_user_id an upstream identity
// system assigns. A user may belong to several tenants.
type User struct {
	ID             string    `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	TenantIDs      []string  `json:"tenant_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is a named bundle of permissions scoped to exactly one
// (tenant, namespace) pair. A role without permissions grants nothing.
type Role struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Namespace   string       `json:"namespace"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Permission grants an action on a resource pattern. Action is an exact
// string or "*". Resource is a '/'-delimited path pattern where a segment is
// a literal, "*" (exactly one segment), or a trailing "**" (the rest).
type Permission struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// IsAllowedRequest is the question put to the decision engine.
type IsAllowedRequest struct {
	ExternalUserID string `json:"external_user_id"`
	Namespace      string `json:"namespace"`
	Action         string `json:"action"`
	Resource       string `json:"resource"`
}

// IsAllowedResult is the answer. No reason or matched-role identity is
// surfaced; absence of a matching permission is denial.
type IsAllowedResult struct {
	Result bool `json:"result"`
}

// UserQuery filters ListUsers.
type UserQuery struct {
	ExternalUserID string `json:"external_user_id,omitempty"`
	TenantID       string `json:"tenant_id,omitempty"`
}

// ============================================================================
// STORAGE INTERFACES
// ============================================================================

// DirectoryStore is the read surface the decision engine depends on. A user
// with no roles (or no such user) yields an empty set, not an error; errors
// mean the store itself could not answer.
//
// GetRolesMatchingRequest may push the matching down to storage or fetch the
// role documents and delegate to MatchingRoleIDs; the shipped stores do the
// latter.
type DirectoryStore interface {
	GetRoleIDsForUser(ctx context.Context, externalUserID string) ([]string, error)
	GetRolesMatchingRequest(ctx context.Context, roleIDs []string, req *IsAllowedRequest) ([]string, error)
}

// TenantStore manages tenant persistence.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	UpdateTenant(ctx context.Context, t *Tenant) error
	DeleteTenant(ctx context.Context, id string) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	SubscribeTenantToProduct(ctx context.Context, tenantID, product string) error
}

// UserStore manages user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error)
	ListUsers(ctx context.Context, q UserQuery) ([]*User, error)
	AssociateUserWithTenant(ctx context.Context, userID, tenantID string) error
}

// RoleStore manages role persistence.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)
}

// RoleMembershipStore manages the many-to-many user<->role association,
// keyed by external user id.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, externalUserID, roleID string) error
	RevokeRole(ctx context.Context, externalUserID, roleID string) error
	ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error)
}

// RoleMembershipMirror is a best-effort replica of the membership relation,
// rebuilt whole per user on every mutation. Readers fall back to the
// authoritative store when the mirror has no entry or cannot answer.
type RoleMembershipMirror interface {
	SetRoles(ctx context.Context, externalUserID string, roleIDs []string) error
	Invalidate(ctx context.Context, externalUserID string) error
	ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error)
}
