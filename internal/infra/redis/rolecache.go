package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connecthub/api/pkg/domain/shared"
)

// RoleCache caches the set of role names per user. The auth middleware
// resolves roles from here on every request instead of trusting the
// role claims baked into a token at issue time, so a revoked role takes
// effect within the cache TTL at worst. Assignment mutations invalidate
// the affected users immediately.
type RoleCache struct {
	client *Client
	ttl    time.Duration
}

// NewRoleCache creates a RoleCache.
func NewRoleCache(client *Client, ttl time.Duration) (*RoleCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleCache{client: client, ttl: ttl}, nil
}

func (c *RoleCache) key(userID shared.ID) string {
	return "roles:user:" + userID.String()
}

// Get returns the cached role names for a user, or ErrCacheMiss.
func (c *RoleCache) Get(ctx context.Context, userID shared.ID) ([]string, error) {
	data, err := c.client.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("role cache get: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("role cache unmarshal: %w", err)
	}
	return names, nil
}

// Set stores the role names for a user with the default TTL.
func (c *RoleCache) Set(ctx context.Context, userID shared.ID, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("role cache marshal: %w", err)
	}
	if err := c.client.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("role cache set: %w", err)
	}
	return nil
}

// GetOrLoad returns cached role names or resolves them with loader and
// caches the result. Cache failures fall through to the loader; a set
// failure after load is logged, not returned.
func (c *RoleCache) GetOrLoad(ctx context.Context, userID shared.ID, loader func(ctx context.Context) ([]string, error)) ([]string, error) {
	names, err := c.Get(ctx, userID)
	if err == nil {
		return names, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.client.logger.Warn("role cache get failed, falling back to store",
			"user_id", userID.String(), "error", err)
	}

	names, err = loader(ctx)
	if err != nil {
		return nil, err
	}

	if setErr := c.Set(ctx, userID, names); setErr != nil {
		c.client.logger.Warn("role cache set failed after load",
			"user_id", userID.String(), "error", setErr)
	}
	return names, nil
}

// Invalidate drops the cached roles for one or more users.
func (c *RoleCache) Invalidate(ctx context.Context, userIDs ...shared.ID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("role cache invalidate: %w", err)
	}
	return nil
}
