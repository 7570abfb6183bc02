package stores

import (
	"context"
	"testing"
)

func TestMemoryUserStoreRoles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	roles, err := s.GetUserRoles(ctx, "nobody")
	if err != nil {
		t.Fatalf("get roles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("unknown user must have no roles, got %v", roles)
	}

	if err := s.AssignRole(ctx, "alice", "role_b"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := s.AssignRole(ctx, "alice", "role_a"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// duplicate assignment is a no-op
	if err := s.AssignRole(ctx, "alice", "role_a"); err != nil {
		t.Fatalf("re-assign: %v", err)
	}

	roles, err = s.GetUserRoles(ctx, "alice")
	if err != nil {
		t.Fatalf("get roles: %v", err)
	}
	if len(roles) != 2 || roles[0] != "role_a" || roles[1] != "role_b" {
		t.Fatalf("expected sorted [role_a role_b], got %v", roles)
	}

	if err := s.RevokeRole(ctx, "alice", "role_a"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	roles, _ = s.GetUserRoles(ctx, "alice")
	if len(roles) != 1 || roles[0] != "role_b" {
		t.Fatalf("expected [role_b], got %v", roles)
	}

	// revoking from an unknown user is not an error
	if err := s.RevokeRole(ctx, "nobody", "role_a"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestMemoryUserStoreAttributes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	if err := s.SetAttribute(ctx, "alice", "clearance", 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetAttribute(ctx, "alice", "department", "finance"); err != nil {
		t.Fatalf("set: %v", err)
	}

	attrs, err := s.GetUserAttributes(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if attrs["clearance"] != 4 || attrs["department"] != "finance" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}

	// returned map is a copy; mutating it must not leak into the store
	attrs["clearance"] = 99
	again, _ := s.GetUserAttributes(ctx, "alice")
	if again["clearance"] != 4 {
		t.Fatalf("store data mutated through returned map")
	}

	// overwrite
	if err := s.SetAttribute(ctx, "alice", "clearance", 2); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	again, _ = s.GetUserAttributes(ctx, "alice")
	if again["clearance"] != 2 {
		t.Fatalf("expected overwritten value, got %v", again["clearance"])
	}
}

func TestMemoryUserStoreAssignments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	_ = s.AssignRole(ctx, "alice", "role_a")
	_ = s.AssignRole(ctx, "alice", "role_b")

	assignments, err := s.ListRoleAssignments(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	for _, a := range assignments {
		if a.AssignedAt.IsZero() {
			t.Fatalf("assignment %s missing timestamp", a.RoleID)
		}
	}
}
