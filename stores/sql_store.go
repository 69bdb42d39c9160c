package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/trusty"
)

// SQLDirectory persists tenants, users, roles, and role memberships in SQL
// (squealx) and serves the two decision-time reads. Matching is done in the
// core matcher over role documents fetched here.
type SQLDirectory struct {
	db *squealx.DB
}

func NewSQLDirectory(db *squealx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// ---------------------------------------------------------------------------
// DirectoryStore (decision reads)
// ---------------------------------------------------------------------------

func (s *SQLDirectory) GetRoleIDsForUser(ctx context.Context, externalUserID string) ([]string, error) {
	q := `SELECT role_id FROM role_members WHERE external_user_id = :external_user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"external_user_id": externalUserID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var roleID string
		if err := r.Scan(&roleID); err != nil {
			return nil, err
		}
		out = append(out, roleID)
	}
	return out, nil
}

func (s *SQLDirectory) GetRolesMatchingRequest(ctx context.Context, roleIDs []string, req *trusty.IsAllowedRequest) ([]string, error) {
	roles := make([]*trusty.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		role, err := s.GetRole(ctx, id)
		if errors.Is(err, trusty.ErrNotFound) {
			// a role deleted between resolution and matching grants nothing
			continue
		}
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return trusty.MatchingRoleIDs(roles, req), nil
}

// ---------------------------------------------------------------------------
// TenantStore
// ---------------------------------------------------------------------------

func (s *SQLDirectory) CreateTenant(ctx context.Context, t *trusty.Tenant) error {
	q := `INSERT INTO tenants(id, name, products_json, created_at, updated_at) VALUES(:id, :name, :products_json, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": t.ID, "name": t.Name, "products_json": marshalJSON(t.Products),
		"created_at": t.CreatedAt, "updated_at": t.UpdatedAt,
	})
	return err
}

func (s *SQLDirectory) UpdateTenant(ctx context.Context, t *trusty.Tenant) error {
	q := `UPDATE tenants SET name=:name, products_json=:products_json, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": t.ID, "name": t.Name, "products_json": marshalJSON(t.Products), "updated_at": t.UpdatedAt,
	})
	return err
}

// DeleteTenant removes the tenant and everything it owns: its roles, their
// memberships, and the user associations. Roles belong to exactly one
// tenant, so an orphaned role must not keep granting decisions.
func (s *SQLDirectory) DeleteTenant(ctx context.Context, id string) error {
	arg := map[string]any{"id": id}
	queries := []string{
		`DELETE FROM role_members WHERE role_id IN (SELECT id FROM roles WHERE tenant_id = :id)`,
		`DELETE FROM roles WHERE tenant_id = :id`,
		`DELETE FROM user_tenants WHERE tenant_id = :id`,
		`DELETE FROM tenants WHERE id = :id`,
	}
	for _, q := range queries {
		if _, err := s.db.NamedExecContext(ctx, q, arg); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLDirectory) GetTenant(ctx context.Context, id string) (*trusty.Tenant, error) {
	q := `SELECT id, name, products_json, created_at, updated_at FROM tenants WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: tenant %s", trusty.ErrNotFound, id)
	}
	return scanTenant(r)
}

func (s *SQLDirectory) ListTenants(ctx context.Context) ([]*trusty.Tenant, error) {
	q := `SELECT id, name, products_json, created_at, updated_at FROM tenants ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*trusty.Tenant, 0)
	for r.Next() {
		t, err := scanTenant(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLDirectory) SubscribeTenantToProduct(ctx context.Context, tenantID, product string) error {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, p := range t.Products {
		if p == product {
			return nil
		}
	}
	t.Products = append(t.Products, product)
	t.UpdatedAt = time.Now()
	return s.UpdateTenant(ctx, t)
}

func scanTenant(r *squealx.Rows) (*trusty.Tenant, error) {
	var id, name, productsJSON string
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &name, &productsJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &trusty.Tenant{
		ID: id, Name: name, Products: unmarshalStrings(productsJSON),
		CreatedAt: scanTime(createdRaw), UpdatedAt: scanTime(updatedRaw),
	}, nil
}

// ---------------------------------------------------------------------------
// UserStore
// ---------------------------------------------------------------------------

func (s *SQLDirectory) CreateUser(ctx context.Context, u *trusty.User) error {
	q := `INSERT INTO users(id, external_user_id, name, email, created_at, updated_at) VALUES(:id, :external_user_id, :name, :email, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": u.ID, "external_user_id": u.ExternalUserID, "name": u.Name, "email": u.Email,
		"created_at": u.CreatedAt, "updated_at": u.UpdatedAt,
	})
	if err != nil {
		return err
	}
	for _, tenantID := range u.TenantIDs {
		if err := s.AssociateUserWithTenant(ctx, u.ID, tenantID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLDirectory) UpdateUser(ctx context.Context, u *trusty.User) error {
	q := `UPDATE users SET name=:name, email=:email, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": u.ID, "name": u.Name, "email": u.Email, "updated_at": u.UpdatedAt,
	})
	return err
}

func (s *SQLDirectory) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM user_tenants WHERE user_id = :id`, map[string]any{"id": id})
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `DELETE FROM users WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (s *SQLDirectory) GetUser(ctx context.Context, id string) (*trusty.User, error) {
	q := `SELECT id, external_user_id, name, email, created_at, updated_at FROM users WHERE id = :id`
	return s.getUser(ctx, q, map[string]any{"id": id})
}

func (s *SQLDirectory) GetUserByExternalID(ctx context.Context, externalUserID string) (*trusty.User, error) {
	q := `SELECT id, external_user_id, name, email, created_at, updated_at FROM users WHERE external_user_id = :external_user_id`
	return s.getUser(ctx, q, map[string]any{"external_user_id": externalUserID})
}

func (s *SQLDirectory) getUser(ctx context.Context, q string, args map[string]any) (*trusty.User, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: user", trusty.ErrNotFound)
	}
	u, err := scanUser(r)
	if err != nil {
		return nil, err
	}
	u.TenantIDs, err = s.tenantIDsForUser(ctx, u.ID)
	return u, err
}

func (s *SQLDirectory) ListUsers(ctx context.Context, query trusty.UserQuery) ([]*trusty.User, error) {
	q := `SELECT id, external_user_id, name, email, created_at, updated_at FROM users WHERE (:external_user_id = '' OR external_user_id = :external_user_id) ORDER BY external_user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"external_user_id": query.ExternalUserID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*trusty.User, 0)
	for r.Next() {
		u, err := scanUser(r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	filtered := make([]*trusty.User, 0, len(out))
	for _, u := range out {
		u.TenantIDs, err = s.tenantIDsForUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if query.TenantID != "" && !contains(u.TenantIDs, query.TenantID) {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered, nil
}

func (s *SQLDirectory) AssociateUserWithTenant(ctx context.Context, userID, tenantID string) error {
	q := `INSERT OR IGNORE INTO user_tenants(user_id, tenant_id) VALUES(:user_id, :tenant_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	return err
}

func (s *SQLDirectory) tenantIDsForUser(ctx context.Context, userID string) ([]string, error) {
	q := `SELECT tenant_id FROM user_tenants WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var tenantID string
		if err := r.Scan(&tenantID); err != nil {
			return nil, err
		}
		out = append(out, tenantID)
	}
	return out, nil
}

func scanUser(r *squealx.Rows) (*trusty.User, error) {
	var id, externalID, name, email string
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &externalID, &name, &email, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &trusty.User{
		ID: id, ExternalUserID: externalID, Name: name, Email: email,
		CreatedAt: scanTime(createdRaw), UpdatedAt: scanTime(updatedRaw),
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// RoleStore
// ---------------------------------------------------------------------------

func (s *SQLDirectory) CreateRole(ctx context.Context, role *trusty.Role) error {
	q := `INSERT INTO roles(id, tenant_id, namespace, name, permissions_json, created_at) VALUES(:id, :tenant_id, :namespace, :name, :permissions_json, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": role.ID, "tenant_id": role.TenantID, "namespace": role.Namespace,
		"name": role.Name, "permissions_json": marshalJSON(role.Permissions), "created_at": role.CreatedAt,
	})
	return err
}

func (s *SQLDirectory) UpdateRole(ctx context.Context, role *trusty.Role) error {
	q := `UPDATE roles SET tenant_id=:tenant_id, namespace=:namespace, name=:name, permissions_json=:permissions_json WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": role.ID, "tenant_id": role.TenantID, "namespace": role.Namespace,
		"name": role.Name, "permissions_json": marshalJSON(role.Permissions),
	})
	return err
}

func (s *SQLDirectory) DeleteRole(ctx context.Context, id string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM role_members WHERE role_id = :id`, map[string]any{"id": id})
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `DELETE FROM roles WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (s *SQLDirectory) GetRole(ctx context.Context, id string) (*trusty.Role, error) {
	q := `SELECT id, tenant_id, namespace, name, permissions_json, created_at FROM roles WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role %s", trusty.ErrNotFound, id)
	}
	return scanRole(r)
}

func (s *SQLDirectory) ListRoles(ctx context.Context, tenantID string) ([]*trusty.Role, error) {
	q := `SELECT id, tenant_id, namespace, name, permissions_json, created_at FROM roles WHERE (:tenant_id = '' OR tenant_id = :tenant_id) ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*trusty.Role, 0)
	for r.Next() {
		role, err := scanRole(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func scanRole(r *squealx.Rows) (*trusty.Role, error) {
	var id, tenantID, namespace, name, permsJSON string
	var createdRaw interface{}
	if err := r.Scan(&id, &tenantID, &namespace, &name, &permsJSON, &createdRaw); err != nil {
		return nil, err
	}
	role := &trusty.Role{ID: id, TenantID: tenantID, Namespace: namespace, Name: name, CreatedAt: scanTime(createdRaw)}
	var perms []trusty.Permission
	// A corrupt column must not quietly become a grants-nothing role: this
	// feeds decisions, so the caller has to see the failure.
	if err := json.Unmarshal([]byte(permsJSON), &perms); err != nil {
		return nil, fmt.Errorf("role %s: parse permissions: %w", id, err)
	}
	role.Permissions = perms
	return role, nil
}

// ---------------------------------------------------------------------------
// RoleMembershipStore
// ---------------------------------------------------------------------------

func (s *SQLDirectory) AssignRole(ctx context.Context, externalUserID, roleID string) error {
	q := `INSERT OR IGNORE INTO role_members(external_user_id, role_id) VALUES(:external_user_id, :role_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"external_user_id": externalUserID, "role_id": roleID})
	return err
}

func (s *SQLDirectory) RevokeRole(ctx context.Context, externalUserID, roleID string) error {
	q := `DELETE FROM role_members WHERE external_user_id = :external_user_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"external_user_id": externalUserID, "role_id": roleID})
	return err
}

func (s *SQLDirectory) ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error) {
	return s.GetRoleIDsForUser(ctx, externalUserID)
}
