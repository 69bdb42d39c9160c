package stores

import (
	"context"

	"github.com/oarkflow/trusty"
)

// MembershipDirectory serves role-id lookups from a membership mirror and
// falls back to the authoritative directory when the mirror has no entry or
// cannot answer. Mirror trouble must never manufacture a deny; the delegate
// remains the source of truth.
type MembershipDirectory struct {
	delegate trusty.DirectoryStore
	mirror   trusty.RoleMembershipMirror
}

func NewMembershipDirectory(delegate trusty.DirectoryStore, mirror trusty.RoleMembershipMirror) *MembershipDirectory {
	return &MembershipDirectory{delegate: delegate, mirror: mirror}
}

func (m *MembershipDirectory) GetRoleIDsForUser(ctx context.Context, externalUserID string) ([]string, error) {
	ids, err := m.mirror.ListRoleIDs(ctx, externalUserID)
	if err == nil && len(ids) > 0 {
		return ids, nil
	}
	// an empty mirror entry is indistinguishable from "never mirrored"
	return m.delegate.GetRoleIDsForUser(ctx, externalUserID)
}

func (m *MembershipDirectory) GetRolesMatchingRequest(ctx context.Context, roleIDs []string, req *trusty.IsAllowedRequest) ([]string, error) {
	return m.delegate.GetRolesMatchingRequest(ctx, roleIDs, req)
}
