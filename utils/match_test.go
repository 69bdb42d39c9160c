package utils

import "testing"

func TestMatchAction(t *testing.T) {
	if !MatchAction("*", "read") {
		t.Fatalf("wildcard action should match any action")
	}
	if !MatchAction("read", "read") {
		t.Fatalf("exact action should match")
	}
	if MatchAction("read", "write") {
		t.Fatalf("different action should not match")
	}
	if MatchAction("Read", "read") {
		t.Fatalf("action matching must be case-sensitive")
	}
}

func TestMatchResource(t *testing.T) {
	cases := []struct {
		pattern  string
		resource string
		want     bool
	}{
		{"orders/42", "orders/42", true},
		{"orders/42", "orders/43", false},
		{"orders/*", "orders/42", true},
		{"orders/*", "orders/42/items", false},
		{"orders/*", "orders", false},
		{"orders/**", "orders/42", true},
		{"orders/**", "orders/42/items", true},
		{"orders/**", "orders", true},
		{"orders/**", "payments/42", false},
		{"**", "anything/at/all", true},
		{"**", "", true},
		{"*", "orders", true},
		{"*", "orders/42", false},
		{"tenants/*/users", "tenants/t1/users", true},
		{"tenants/*/users", "tenants/t1/roles", false},
		{"a/**/b", "a/x/b", false},
		{"orders", "orders/42", false},
	}
	for _, c := range cases {
		if got := MatchResource(c.pattern, c.resource); got != c.want {
			t.Fatalf("MatchResource(%q, %q) = %v, want %v", c.pattern, c.resource, got, c.want)
		}
	}
}
