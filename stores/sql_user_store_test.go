package stores

import (
	"context"
	"database/sql"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *SQLUserStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLUserStore(db)
}

func TestSQLUserStoreRolesRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if err := store.AssignRole(ctx, "alice", "role_user"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.AssignRole(ctx, "alice", "role_admin"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// INSERT OR IGNORE makes duplicate assignment a no-op
	if err := store.AssignRole(ctx, "alice", "role_user"); err != nil {
		t.Fatalf("re-assign: %v", err)
	}

	roles, err := store.GetUserRoles(ctx, "alice")
	if err != nil {
		t.Fatalf("get roles: %v", err)
	}
	if len(roles) != 2 || roles[0] != "role_admin" || roles[1] != "role_user" {
		t.Fatalf("expected [role_admin role_user], got %v", roles)
	}

	if err := store.RevokeRole(ctx, "alice", "role_admin"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	roles, _ = store.GetUserRoles(ctx, "alice")
	if len(roles) != 1 || roles[0] != "role_user" {
		t.Fatalf("expected [role_user], got %v", roles)
	}

	assignments, err := store.ListRoleAssignments(ctx, "alice")
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].RoleID != "role_user" {
		t.Fatalf("unexpected assignments: %+v", assignments)
	}
	if assignments[0].AssignedAt.IsZero() {
		t.Fatalf("assigned_at did not parse")
	}
}

func TestSQLUserStoreAttributesRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if err := store.SetAttribute(ctx, "alice", "clearance", 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetAttribute(ctx, "alice", "tags", []any{"a", "b"}); err != nil {
		t.Fatalf("set array: %v", err)
	}
	// upsert path
	if err := store.SetAttribute(ctx, "alice", "clearance", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	attrs, err := store.GetUserAttributes(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// values come back through JSON, so numbers are float64
	if attrs["clearance"] != float64(2) {
		t.Fatalf("expected clearance 2, got %v", attrs["clearance"])
	}
	tags, ok := attrs["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Fatalf("expected tags [a b], got %v", attrs["tags"])
	}

	empty, err := store.GetUserAttributes(ctx, "nobody")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown user must have no attributes, got %v", empty)
	}
}
