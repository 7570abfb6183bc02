package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/access"
)

// RedisUserStore keeps role assignments in Redis sets (key: userroles:{id})
// and attribute values in hashes (key: userattrs:{id}) with JSON-encoded
// values.
type RedisUserStore struct {
	client *redis.Client
}

func NewRedisUserStore(client *redis.Client) *RedisUserStore {
	return &RedisUserStore{client: client}
}

func (r *RedisUserStore) rolesKey(userID string) string {
	return fmt.Sprintf("userroles:%s", userID)
}

func (r *RedisUserStore) attrsKey(userID string) string {
	return fmt.Sprintf("userattrs:%s", userID)
}

func (r *RedisUserStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, r.rolesKey(userID)).Result()
}

func (r *RedisUserStore) GetUserAttributes(ctx context.Context, userID string) (access.AttributeValues, error) {
	raw, err := r.client.HGetAll(ctx, r.attrsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	attrs := make(access.AttributeValues, len(raw))
	for key, valueJSON := range raw {
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("decode attribute %q: %w", key, err)
		}
		attrs[key] = value
	}
	return attrs, nil
}

func (r *RedisUserStore) AssignRole(ctx context.Context, userID, roleID string) error {
	return r.client.SAdd(ctx, r.rolesKey(userID), roleID).Err()
}

func (r *RedisUserStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	return r.client.SRem(ctx, r.rolesKey(userID), roleID).Err()
}

func (r *RedisUserStore) SetAttribute(ctx context.Context, userID, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode attribute %q: %w", key, err)
	}
	return r.client.HSet(ctx, r.attrsKey(userID), key, string(valueJSON)).Err()
}
