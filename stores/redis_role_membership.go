package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRoleMembership mirrors user->role memberships in Redis sets
// (key: trusty:roles:{externalUserID}). It is a read accelerator for the
// role resolver, rebuilt whole per user by the directory service on every
// membership mutation.
type RedisRoleMembership struct {
	client *redis.Client
	keyFmt string // format string, e.g. "trusty:roles:%s"
}

func NewRedisRoleMembership(client *redis.Client) *RedisRoleMembership {
	return &RedisRoleMembership{client: client, keyFmt: "trusty:roles:%s"}
}

func (r *RedisRoleMembership) key(externalUserID string) string {
	return fmt.Sprintf(r.keyFmt, externalUserID)
}

// SetRoles replaces the mirrored role set for a user. An empty set removes
// the key entirely, which readers treat as "not mirrored".
func (r *RedisRoleMembership) SetRoles(ctx context.Context, externalUserID string, roleIDs []string) error {
	key := r.key(externalUserID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(roleIDs) > 0 {
		members := make([]interface{}, len(roleIDs))
		for i, id := range roleIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRoleMembership) Invalidate(ctx context.Context, externalUserID string) error {
	return r.client.Del(ctx, r.key(externalUserID)).Err()
}

func (r *RedisRoleMembership) ListRoleIDs(ctx context.Context, externalUserID string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(externalUserID)).Result()
}
