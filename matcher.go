package trusty

import "github.com/oarkflow/trusty/utils"

// MatchingRoleIDs returns the ids of the roles that grant the request. A
// role participates only when its namespace equals the request's namespace;
// within a role, permissions are OR'd, so the first granting permission
// settles it. The result is a deduplicated set in no particular order.
func MatchingRoleIDs(roles []*Role, req *IsAllowedRequest) []string {
	matched := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role == nil || role.Namespace != req.Namespace {
			continue
		}
		if _, dup := seen[role.ID]; dup {
			continue
		}
		if roleGrants(role, req) {
			seen[role.ID] = struct{}{}
			matched = append(matched, role.ID)
		}
	}
	return matched
}

func roleGrants(role *Role, req *IsAllowedRequest) bool {
	for _, p := range role.Permissions {
		if utils.MatchAction(p.Action, req.Action) && utils.MatchResource(p.Resource, req.Resource) {
			return true
		}
	}
	return false
}
