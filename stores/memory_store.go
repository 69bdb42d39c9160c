package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/oarkflow/trusty"
)

// MemoryDirectory implements every store interface in-memory for testing
// and demo wiring.
type MemoryDirectory struct {
	mu          sync.RWMutex
	tenants     map[string]*trusty.Tenant
	users       map[string]*trusty.User
	roles       map[string]*trusty.Role
	memberships map[string]map[string]struct{} // externalUserID -> role ids
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		tenants:     make(map[string]*trusty.Tenant),
		users:       make(map[string]*trusty.User),
		roles:       make(map[string]*trusty.Role),
		memberships: make(map[string]map[string]struct{}),
	}
}

// ---------------------------------------------------------------------------
// DirectoryStore (decision reads)
// ---------------------------------------------------------------------------

func (s *MemoryDirectory) GetRoleIDsForUser(ctx context.Context, externalUserID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for roleID := range s.memberships[externalUserID] {
		out = append(out, roleID)
	}
	return out, nil
}

func (s *MemoryDirectory) GetRolesMatchingRequest(ctx context.Context, roleIDs []string, req *trusty.IsAllowedRequest) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]*trusty.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		if r, ok := s.roles[id]; ok {
			roles = append(roles, r)
		}
	}
	return trusty.MatchingRoleIDs(roles, req), nil
}

// ---------------------------------------------------------------------------
// TenantStore
// ---------------------------------------------------------------------------

func (s *MemoryDirectory) CreateTenant(ctx context.Context, t *trusty.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *t
	s.tenants[t.ID] = &cop
	return nil
}

func (s *MemoryDirectory) UpdateTenant(ctx context.Context, t *trusty.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return fmt.Errorf("%w: tenant %s", trusty.ErrNotFound, t.ID)
	}
	cop := *t
	s.tenants[t.ID] = &cop
	return nil
}

// DeleteTenant drops the tenant, its roles, and those roles' memberships.
func (s *MemoryDirectory) DeleteTenant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roleID, r := range s.roles {
		if r.TenantID != id {
			continue
		}
		delete(s.roles, roleID)
		for _, memberRoles := range s.memberships {
			delete(memberRoles, roleID)
		}
	}
	for _, u := range s.users {
		for i, tid := range u.TenantIDs {
			if tid == id {
				u.TenantIDs = append(u.TenantIDs[:i], u.TenantIDs[i+1:]...)
				break
			}
		}
	}
	delete(s.tenants, id)
	return nil
}

func (s *MemoryDirectory) GetTenant(ctx context.Context, id string) (*trusty.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s", trusty.ErrNotFound, id)
	}
	cop := *t
	return &cop, nil
}

func (s *MemoryDirectory) ListTenants(ctx context.Context) ([]*trusty.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trusty.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cop := *t
		out = append(out, &cop)
	}
	return out, nil
}

func (s *MemoryDirectory) SubscribeTenantToProduct(ctx context.Context, tenantID, product string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return fmt.Errorf("%w: tenant %s", trusty.ErrNotFound, tenantID)
	}
	for _, p := range t.Products {
		if p == product {
			return nil
		}
	}
	t.Products = append(t.Products, product)
	return nil
}

// ---------------------------------------------------------------------------
// UserStore
// ---------------------------------------------------------------------------

func (s *MemoryDirectory) CreateUser(ctx context.Context, u *trusty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *u
	s.users[u.ID] = &cop
	return nil
}

func (s *MemoryDirectory) UpdateUser(ctx context.Context, u *trusty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: user %s", trusty.ErrNotFound, u.ID)
	}
	cop := *u
	if cop.ExternalUserID == "" {
		cop.ExternalUserID = existing.ExternalUserID
	}
	s.users[u.ID] = &cop
	return nil
}

func (s *MemoryDirectory) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *MemoryDirectory) GetUser(ctx context.Context, id string) (*trusty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", trusty.ErrNotFound, id)
	}
	cop := *u
	return &cop, nil
}

func (s *MemoryDirectory) GetUserByExternalID(ctx context.Context, externalUserID string) (*trusty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ExternalUserID == externalUserID {
			cop := *u
			return &cop, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", trusty.ErrNotFound, externalUserID)
}

func (s *MemoryDirectory) ListUsers(ctx context.Context, q trusty.UserQuery) ([]*trusty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trusty.User, 0, len(s.users))
	for _, u := range s.users {
		if q.ExternalUserID != "" && u.ExternalUserID != q.ExternalUserID {
			continue
		}
		if q.TenantID != "" && !contains(u.TenantIDs, q.TenantID) {
			continue
		}
		cop := *u
		out = append(out, &cop)
	}
	return out, nil
}

func (s *MemoryDirectory) AssociateUserWithTenant(ctx context.Context, userID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", trusty.ErrNotFound, userID)
	}
	if !contains(u.TenantIDs, tenantID) {
		u.TenantIDs = append(u.TenantIDs, tenantID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// RoleStore
// ---------------------------------------------------------------------------

func (s *MemoryDirectory) CreateRole(ctx context.Context, r *trusty.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *r
	s.roles[r.ID] = &cop
	return nil
}

func (s *MemoryDirectory) UpdateRole(ctx context.Context, r *trusty.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return fmt.Errorf("%w: role %s", trusty.ErrNotFound, r.ID)
	}
	cop := *r
	s.roles[r.ID] = &cop
	return nil
}

func (s *MemoryDirectory) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	for _, roles := range s.memberships {
		delete(roles, id)
	}
	return nil
}

func (s *MemoryDirectory) GetRole(ctx context.Context, id string) (*trusty.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: role %s", trusty.ErrNotFound, id)
	}
	cop := *r
	return &cop, nil
}

func (s *MemoryDirectory) ListRoles(ctx context.Context, tenantID string) ([]*trusty.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trusty.Role, 0)
	for _, r := range s.roles {
		if tenantID != "" && r.TenantID != tenantID {
			continue
		}
		cop := *r
		out = append(out, &cop)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// RoleMembershipStore
// ---------------------------------------------------------------------------

func (s *MemoryDirectory) AssignRole(ctx context.Context, externalUserID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberships[externalUserID] == nil {
		s.memberships[externalUserID] = make(map[string]struct{})
	}
	s.memberships[externalUserID][roleID] = struct{}{}
	return nil
}

func (s *MemoryDirectory) RevokeRole(ctx context.Context, externalUserID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships[externalUserID], roleID)
	return nil
}

func (s *MemoryDirectory) ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error) {
	return s.GetRoleIDsForUser(ctx, externalUserID)
}
