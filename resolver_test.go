package trusty

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestResolveDeduplicates(t *testing.T) {
	store := newStubStore()
	store.roles["u1"] = []string{"r1", "r1", "", "r2", "r1"}
	r := NewRoleResolver(store)
	ids, err := r.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"r1", "r2"}) {
		t.Fatalf("expected [r1 r2], got %v", ids)
	}
}

func TestResolveUnknownUserIsEmpty(t *testing.T) {
	r := NewRoleResolver(newStubStore())
	ids, err := r.Resolve(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unknown user must not error, got %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty set, got %v", ids)
	}
}

func TestResolveWrapsStoreFailure(t *testing.T) {
	store := newStubStore()
	store.failResolve = true
	r := NewRoleResolver(store)
	if _, err := r.Resolve(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
