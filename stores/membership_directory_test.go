package stores

import (
	"context"
	"fmt"
	"testing"
)

type fakeMirror struct {
	roles map[string][]string
	fail  bool
}

func (f *fakeMirror) SetRoles(ctx context.Context, externalUserID string, roleIDs []string) error {
	if f.fail {
		return fmt.Errorf("mirror down")
	}
	f.roles[externalUserID] = roleIDs
	return nil
}

func (f *fakeMirror) Invalidate(ctx context.Context, externalUserID string) error {
	delete(f.roles, externalUserID)
	return nil
}

func (f *fakeMirror) ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error) {
	if f.fail {
		return nil, fmt.Errorf("mirror down")
	}
	return f.roles[externalUserID], nil
}

func TestMembershipDirectoryServesFromMirror(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryDirectory()
	mirror := &fakeMirror{roles: map[string][]string{"u1": {"r-mirrored"}}}
	dir := NewMembershipDirectory(mem, mirror)

	ids, err := dir.GetRoleIDsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get role ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "r-mirrored" {
		t.Fatalf("expected mirror entry, got %v", ids)
	}
}

func TestMembershipDirectoryFallsBackOnMirrorError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryDirectory()
	if err := mem.AssignRole(ctx, "u1", "r-authoritative"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	mirror := &fakeMirror{roles: map[string][]string{}, fail: true}
	dir := NewMembershipDirectory(mem, mirror)

	ids, err := dir.GetRoleIDsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("mirror failure must fall back, got error %v", err)
	}
	if len(ids) != 1 || ids[0] != "r-authoritative" {
		t.Fatalf("expected authoritative entry, got %v", ids)
	}
}

func TestMembershipDirectoryFallsBackOnEmptyMirror(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryDirectory()
	if err := mem.AssignRole(ctx, "u1", "r1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	dir := NewMembershipDirectory(mem, &fakeMirror{roles: map[string][]string{}})

	ids, err := dir.GetRoleIDsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get role ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "r1" {
		t.Fatalf("expected delegate entry, got %v", ids)
	}
}
