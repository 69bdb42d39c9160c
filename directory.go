package trusty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Directory is the administrative surface: CRUD over tenants, users, and
// roles plus the association operations. The decision engine never writes;
// everything that mutates grant state flows through here so that the
// decision cache and the membership mirror stay consistent with storage.
type Directory struct {
	tenants    TenantStore
	users      UserStore
	roles      RoleStore
	membership RoleMembershipStore
	mirror     RoleMembershipMirror
	cache      *DecisionCache
	logger     Logger
}

// DirectoryOption configures a Directory during construction.
type DirectoryOption func(*Directory)

// WithMembershipMirror installs a best-effort read mirror (e.g. Redis) kept
// in sync on assign/revoke/delete.
func WithMembershipMirror(m RoleMembershipMirror) DirectoryOption {
	return func(d *Directory) { d.mirror = m }
}

// WithDirectoryCache installs the decision cache to clear on every
// grant-affecting mutation.
func WithDirectoryCache(c *DecisionCache) DirectoryOption {
	return func(d *Directory) { d.cache = c }
}

func WithDirectoryLogger(l Logger) DirectoryOption {
	return func(d *Directory) { d.logger = l }
}

func NewDirectory(tenants TenantStore, users UserStore, roles RoleStore, membership RoleMembershipStore, opts ...DirectoryOption) *Directory {
	d := &Directory{
		tenants:    tenants,
		users:      users,
		roles:      roles,
		membership: membership,
		logger:     NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// invalidate drops cached decisions after a grant-affecting mutation. It
// runs synchronously so a caller observes its own writes on the next
// decision.
func (d *Directory) invalidate() {
	if d.cache != nil {
		d.cache.Clear()
	}
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

func (d *Directory) AddTenant(ctx context.Context, t *Tenant) (*Tenant, error) {
	if t == nil || t.Name == "" {
		return nil, validationErr("name", "is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := d.tenants.CreateTenant(ctx, t); err != nil {
		return nil, err
	}
	d.logger.Info("tenant created", "tenant_id", t.ID, "name", t.Name)
	return t, nil
}

func (d *Directory) UpdateTenant(ctx context.Context, t *Tenant) (*Tenant, error) {
	if t == nil || t.ID == "" {
		return nil, validationErr("id", "is required")
	}
	if t.Name == "" {
		return nil, validationErr("name", "is required")
	}
	t.UpdatedAt = time.Now()
	if err := d.tenants.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTenant cascades to the tenant's roles and their memberships, so it
// changes grants and must clear cached decisions.
func (d *Directory) DeleteTenant(ctx context.Context, id string) error {
	if id == "" {
		return validationErr("id", "is required")
	}
	if err := d.tenants.DeleteTenant(ctx, id); err != nil {
		return err
	}
	d.invalidate()
	return nil
}

func (d *Directory) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return d.tenants.GetTenant(ctx, id)
}

func (d *Directory) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return d.tenants.ListTenants(ctx)
}

func (d *Directory) SubscribeTenantToProduct(ctx context.Context, tenantID, product string) error {
	if tenantID == "" {
		return validationErr("tenant_id", "is required")
	}
	if product == "" {
		return validationErr("product", "is required")
	}
	return d.tenants.SubscribeTenantToProduct(ctx, tenantID, product)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (d *Directory) AddUser(ctx context.Context, u *User) (*User, error) {
	if u == nil || u.ExternalUserID == "" {
		return nil, validationErr("external_user_id", "is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := d.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	d.logger.Info("user created", "user_id", u.ID, "external_user_id", u.ExternalUserID)
	return u, nil
}

func (d *Directory) UpdateUser(ctx context.Context, u *User) (*User, error) {
	if u == nil || u.ID == "" {
		return nil, validationErr("id", "is required")
	}
	u.UpdatedAt = time.Now()
	if err := d.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the user record and its role memberships. The mirror
// entry is invalidated so stale role sets cannot serve future decisions.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return validationErr("id", "is required")
	}
	u, err := d.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	roleIDs, err := d.membership.ListRoleIDs(ctx, u.ExternalUserID)
	if err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if err := d.membership.RevokeRole(ctx, u.ExternalUserID, roleID); err != nil {
			return err
		}
	}
	if err := d.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	d.syncMirror(ctx, u.ExternalUserID)
	d.invalidate()
	return nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (*User, error) {
	return d.users.GetUser(ctx, id)
}

// GetUserInfo resolves a user by the external id supplied by the upstream
// identity system (the /v1/userinfo lookup).
func (d *Directory) GetUserInfo(ctx context.Context, externalUserID string) (*User, error) {
	if externalUserID == "" {
		return nil, validationErr("external_user_id", "is required")
	}
	return d.users.GetUserByExternalID(ctx, externalUserID)
}

func (d *Directory) ListUsers(ctx context.Context, q UserQuery) ([]*User, error) {
	return d.users.ListUsers(ctx, q)
}

func (d *Directory) AssociateUserWithTenant(ctx context.Context, userID, tenantID string) error {
	if userID == "" {
		return validationErr("user_id", "is required")
	}
	if tenantID == "" {
		return validationErr("tenant_id", "is required")
	}
	if _, err := d.tenants.GetTenant(ctx, tenantID); err != nil {
		return err
	}
	return d.users.AssociateUserWithTenant(ctx, userID, tenantID)
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func (d *Directory) AddRole(ctx context.Context, r *Role) (*Role, error) {
	if err := validateRole(r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now()
	if err := d.roles.CreateRole(ctx, r); err != nil {
		return nil, err
	}
	d.invalidate()
	d.logger.Info("role created", "role_id", r.ID, "tenant_id", r.TenantID, "namespace", r.Namespace)
	return r, nil
}

func (d *Directory) UpdateRole(ctx context.Context, r *Role) (*Role, error) {
	if r == nil || r.ID == "" {
		return nil, validationErr("id", "is required")
	}
	if err := validateRole(r); err != nil {
		return nil, err
	}
	if err := d.roles.UpdateRole(ctx, r); err != nil {
		return nil, err
	}
	d.invalidate()
	return r, nil
}

func (d *Directory) DeleteRole(ctx context.Context, id string) error {
	if id == "" {
		return validationErr("id", "is required")
	}
	if err := d.roles.DeleteRole(ctx, id); err != nil {
		return err
	}
	d.invalidate()
	return nil
}

func (d *Directory) GetRole(ctx context.Context, id string) (*Role, error) {
	return d.roles.GetRole(ctx, id)
}

func (d *Directory) ListRoles(ctx context.Context, tenantID string) ([]*Role, error) {
	return d.roles.ListRoles(ctx, tenantID)
}

func validateRole(r *Role) error {
	switch {
	case r == nil || r.Name == "":
		return validationErr("name", "is required")
	case r.TenantID == "":
		return validationErr("tenant_id", "is required")
	case r.Namespace == "":
		return validationErr("namespace", "is required")
	}
	for _, p := range r.Permissions {
		if p.Action == "" {
			return validationErr("permissions.action", "is required")
		}
		if p.Resource == "" {
			return validationErr("permissions.resource", "is required")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------------

func (d *Directory) AssignRole(ctx context.Context, externalUserID, roleID string) error {
	if externalUserID == "" {
		return validationErr("external_user_id", "is required")
	}
	if roleID == "" {
		return validationErr("role_id", "is required")
	}
	if _, err := d.roles.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := d.membership.AssignRole(ctx, externalUserID, roleID); err != nil {
		return err
	}
	d.syncMirror(ctx, externalUserID)
	d.invalidate()
	return nil
}

func (d *Directory) RevokeRole(ctx context.Context, externalUserID, roleID string) error {
	if externalUserID == "" {
		return validationErr("external_user_id", "is required")
	}
	if roleID == "" {
		return validationErr("role_id", "is required")
	}
	if err := d.membership.RevokeRole(ctx, externalUserID, roleID); err != nil {
		return err
	}
	d.syncMirror(ctx, externalUserID)
	d.invalidate()
	return nil
}

// syncMirror rebuilds the mirror entry from the authoritative store. Mirror
// trouble is logged, not surfaced: decisions fall back to the store.
func (d *Directory) syncMirror(ctx context.Context, externalUserID string) {
	if d.mirror == nil {
		return
	}
	roleIDs, err := d.membership.ListRoleIDs(ctx, externalUserID)
	if err != nil {
		d.logger.Error("mirror sync: list roles", "external_user_id", externalUserID, "error", err.Error())
		return
	}
	if err := d.mirror.SetRoles(ctx, externalUserID, roleIDs); err != nil {
		d.logger.Error("mirror sync: set roles", "external_user_id", externalUserID, "error", err.Error())
	}
}
