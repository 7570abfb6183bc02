package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/access"
)

// SQLUserStore persists role assignments and attribute values in a SQL
// database via squealx. Attribute values are stored as JSON text so every
// declared attribute type round-trips through one column.
type SQLUserStore struct {
	db *squealx.DB
}

func NewSQLUserStore(db *squealx.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

func (s *SQLUserStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	out := make([]string, 0)
	q := `SELECT role_id FROM user_roles WHERE user_id = :user_id ORDER BY role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for r.Next() {
		var role string
		if err := r.Scan(&role); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func (s *SQLUserStore) GetUserAttributes(ctx context.Context, userID string) (access.AttributeValues, error) {
	attrs := make(access.AttributeValues)
	q := `SELECT attr_key, value_json FROM user_attributes WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for r.Next() {
		var key, valueJSON string
		if err := r.Scan(&key, &valueJSON); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("decode attribute %q: %w", key, err)
		}
		attrs[key] = value
	}
	return attrs, nil
}

func (s *SQLUserStore) AssignRole(ctx context.Context, userID, roleID string) error {
	q := `INSERT OR IGNORE INTO user_roles(user_id, role_id, assigned_at) VALUES(:user_id, :role_id, :assigned_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":     userID,
		"role_id":     roleID,
		"assigned_at": time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

func (s *SQLUserStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	q := `DELETE FROM user_roles WHERE user_id = :user_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	return err
}

func (s *SQLUserStore) SetAttribute(ctx context.Context, userID, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode attribute %q: %w", key, err)
	}
	q := `INSERT INTO user_attributes(user_id, attr_key, value_json, updated_at)
	      VALUES(:user_id, :attr_key, :value_json, :updated_at)
	      ON CONFLICT(user_id, attr_key) DO UPDATE SET value_json = :value_json, updated_at = :updated_at`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":    userID,
		"attr_key":   key,
		"value_json": string(valueJSON),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

func (s *SQLUserStore) ListRoleAssignments(ctx context.Context, userID string) ([]access.RoleAssignment, error) {
	out := make([]access.RoleAssignment, 0)
	q := `SELECT role_id, assigned_at FROM user_roles WHERE user_id = :user_id ORDER BY assigned_at`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for r.Next() {
		var roleID, assignedAt string
		if err := r.Scan(&roleID, &assignedAt); err != nil {
			return nil, err
		}
		at, err := parseFlexibleTime(assignedAt)
		if err != nil {
			return nil, fmt.Errorf("parse assigned_at for role %q: %w", roleID, err)
		}
		out = append(out, access.RoleAssignment{RoleID: roleID, AssignedAt: at})
	}
	return out, nil
}
