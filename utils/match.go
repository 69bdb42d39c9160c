package utils

import "strings"

// MatchAction checks a permission action against a requested action.
// "*" grants any action; everything else is an exact, case-sensitive match.
func MatchAction(pattern, action string) bool {
	return pattern == "*" || pattern == action
}

// MatchResource matches a requested resource path against a permission
// pattern. Both are '/'-delimited. Pattern segments may be:
//   - a literal, which must equal the corresponding resource segment;
//   - "*", which matches exactly one arbitrary segment;
//   - "**", allowed only as the final segment, which matches all remaining
//     segments (zero or more).
//
// Unless the pattern ends in "**", pattern and resource must have the same
// segment count. A pattern of exactly "**" matches any resource, including
// the empty path. A "**" in a non-final position matches nothing.
func MatchResource(pattern, resource string) bool {
	if pattern == "**" {
		return true
	}
	pseg := strings.Split(pattern, "/")
	rseg := strings.Split(resource, "/")
	for i, p := range pseg {
		if p == "**" {
			return i == len(pseg)-1
		}
		if i >= len(rseg) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != rseg[i] {
			return false
		}
	}
	return len(pseg) == len(rseg)
}
