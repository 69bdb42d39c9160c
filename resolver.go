package trusty

import "context"

// RoleResolver looks up the set of role ids assigned to an actor. Namespace
// filtering happens later, in the matcher; the resolver sees the user's
// roles across all tenants.
type RoleResolver struct {
	store DirectoryStore
}

func NewRoleResolver(store DirectoryStore) *RoleResolver {
	return &RoleResolver{store: store}
}

// Resolve returns the deduplicated role ids for externalUserID. An unknown
// user is not an error: it resolves to the empty set. A store failure is
// surfaced wrapped in ErrStoreUnavailable and never collapsed into "no
// roles".
func (r *RoleResolver) Resolve(ctx context.Context, externalUserID string) ([]string, error) {
	ids, err := r.store.GetRoleIDsForUser(ctx, externalUserID)
	if err != nil {
		return nil, storeFailure("get role ids for user", err)
	}
	return dedupIDs(ids), nil
}

func dedupIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
