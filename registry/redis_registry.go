package registry

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/ckoons/argo-sub001/rterrors"
)

// RedisBackend mirrors a Registry's entries into Redis so that multiple
// orchestrator processes can see the same CI directory. It is grounded on
// core/discovery.go's RedisDiscovery: namespaced keys, a per-entry TTL
// refreshed on every write, and a role-based secondary index. Port
// allocation itself stays process-local (ports are a local-process
// resource); RedisBackend only publishes presence, the same split gomind
// draws between "registration" and "discovery."
type RedisBackend struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisBackend dials redisURL and verifies connectivity before
// returning, exactly as core.NewRedisDiscoveryWithNamespace does.
func NewRedisBackend(ctx context.Context, redisURL, namespace string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, rterrors.Wrap("registry.NewRedisBackend", rterrors.KindInvalidValue, err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, rterrors.Wrap("registry.NewRedisBackend", rterrors.KindSocket, err)
	}

	if namespace == "" {
		namespace = "argo"
	}
	return &RedisBackend{client: client, namespace: namespace, ttl: 30 * time.Second}, nil
}

func (b *RedisBackend) entryKey(name string) string {
	return fmt.Sprintf("%s:entries:%s", b.namespace, name)
}

func (b *RedisBackend) roleKey(role string) string {
	return fmt.Sprintf("%s:roles:%s", b.namespace, role)
}

// Publish writes entry's current state to Redis with a refreshed TTL and
// indexes it under its role.
func (b *RedisBackend) Publish(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return rterrors.Wrap("registry.RedisBackend.Publish", rterrors.KindFormat, err)
	}
	if err := b.client.Set(ctx, b.entryKey(entry.Name), data, b.ttl).Err(); err != nil {
		return rterrors.Wrap("registry.RedisBackend.Publish", rterrors.KindSocket, err)
	}
	roleKey := b.roleKey(entry.Role)
	if err := b.client.SAdd(ctx, roleKey, entry.Name).Err(); err == nil {
		b.client.Expire(ctx, roleKey, b.ttl*2)
	}
	return nil
}

// Retract removes an entry's published state.
func (b *RedisBackend) Retract(ctx context.Context, entry *Entry) error {
	b.client.SRem(ctx, b.roleKey(entry.Role), entry.Name)
	return b.client.Del(ctx, b.entryKey(entry.Name)).Err()
}

// FindByRole returns every entry currently published under role.
func (b *RedisBackend) FindByRole(ctx context.Context, role string) ([]*Entry, error) {
	names, err := b.client.SMembers(ctx, b.roleKey(role)).Result()
	if err != nil {
		return nil, rterrors.Wrap("registry.RedisBackend.FindByRole", rterrors.KindSocket, err)
	}
	var out []*Entry
	for _, name := range names {
		data, err := b.client.Get(ctx, b.entryKey(name)).Result()
		if err != nil {
			continue // expired between SMEMBERS and GET
		}
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}
