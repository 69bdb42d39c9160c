package trusty

import (
	"reflect"
	"sort"
	"testing"
)

func TestMatchingRoleIDs(t *testing.T) {
	roles := []*Role{
		{ID: "reader", Namespace: "billing", Permissions: []Permission{
			{Action: "read", Resource: "invoices/*"},
		}},
		{ID: "admin", Namespace: "billing", Permissions: []Permission{
			{Action: "*", Resource: "**"},
		}},
		{ID: "support", Namespace: "support", Permissions: []Permission{
			{Action: "read", Resource: "invoices/*"},
		}},
		{ID: "empty", Namespace: "billing"},
	}

	tests := []struct {
		name string
		req  IsAllowedRequest
		want []string
	}{
		{
			name: "read invoice matches reader and admin",
			req:  IsAllowedRequest{Namespace: "billing", Action: "read", Resource: "invoices/42"},
			want: []string{"admin", "reader"},
		},
		{
			name: "write only matches admin",
			req:  IsAllowedRequest{Namespace: "billing", Action: "write", Resource: "invoices/42"},
			want: []string{"admin"},
		},
		{
			name: "namespace scopes out other roles",
			req:  IsAllowedRequest{Namespace: "support", Action: "read", Resource: "invoices/42"},
			want: []string{"support"},
		},
		{
			name: "unknown namespace matches nothing",
			req:  IsAllowedRequest{Namespace: "hr", Action: "read", Resource: "invoices/42"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchingRoleIDs(roles, &tt.req)
			sort.Strings(got)
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("MatchingRoleIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchingRoleIDsDeduplicates(t *testing.T) {
	roles := []*Role{
		{ID: "r1", Namespace: "billing", Permissions: []Permission{
			{Action: "read", Resource: "invoices/*"},
			{Action: "*", Resource: "invoices/**"},
		}},
	}
	req := &IsAllowedRequest{Namespace: "billing", Action: "read", Resource: "invoices/42"}
	got := MatchingRoleIDs(roles, req)
	if len(got) != 1 || got[0] != "r1" {
		t.Fatalf("a role matching multiple permissions must appear once, got %v", got)
	}
}

func TestMatchingRoleIDsPermissionsAreORed(t *testing.T) {
	roles := []*Role{
		{ID: "mixed", Namespace: "billing", Permissions: []Permission{
			{Action: "read", Resource: "invoices/*"},
			{Action: "write", Resource: "drafts/*"},
		}},
	}
	for _, tc := range []struct {
		action, resource string
		want             bool
	}{
		{"read", "invoices/1", true},
		{"write", "drafts/1", true},
		{"write", "invoices/1", false},
		{"read", "drafts/1", false},
	} {
		req := &IsAllowedRequest{Namespace: "billing", Action: tc.action, Resource: tc.resource}
		got := len(MatchingRoleIDs(roles, req)) > 0
		if got != tc.want {
			t.Fatalf("%s %s: got %v, want %v", tc.action, tc.resource, got, tc.want)
		}
	}
}
