package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oarkflow/access"
)

// MemoryUserStore keeps role assignments and attribute values in process
// memory. Users that were never written are treated as existing with no roles
// and no attributes.
type MemoryUserStore struct {
	mu    sync.RWMutex
	roles map[string]map[string]time.Time
	attrs map[string]access.AttributeValues
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		roles: make(map[string]map[string]time.Time),
		attrs: make(map[string]access.AttributeValues),
	}
}

func (s *MemoryUserStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assigned := s.roles[userID]
	out := make([]string, 0, len(assigned))
	for roleID := range assigned {
		out = append(out, roleID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryUserStore) GetUserAttributes(ctx context.Context, userID string) (access.AttributeValues, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs := s.attrs[userID]
	out := make(access.AttributeValues, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryUserStore) AssignRole(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned, ok := s.roles[userID]
	if !ok {
		assigned = make(map[string]time.Time)
		s.roles[userID] = assigned
	}
	if _, exists := assigned[roleID]; !exists {
		assigned[roleID] = time.Now()
	}
	return nil
}

func (s *MemoryUserStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if assigned, ok := s.roles[userID]; ok {
		delete(assigned, roleID)
	}
	return nil
}

func (s *MemoryUserStore) SetAttribute(ctx context.Context, userID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.attrs[userID]
	if !ok {
		attrs = make(access.AttributeValues)
		s.attrs[userID] = attrs
	}
	attrs[key] = value
	return nil
}

// ListRoleAssignments returns the user's assignments with their timestamps,
// newest last.
func (s *MemoryUserStore) ListRoleAssignments(ctx context.Context, userID string) ([]access.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assigned := s.roles[userID]
	out := make([]access.RoleAssignment, 0, len(assigned))
	for roleID, at := range assigned {
		out = append(out, access.RoleAssignment{RoleID: roleID, AssignedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}
