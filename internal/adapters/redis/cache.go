package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// SetHoldLock is a fast-path guard on a (slot, period) pair: a cheap
// rejection before opening a transaction. The database row check remains
// authoritative. The key carries the holder's buyer id, so the holder
// re-acquires its own lock rather than colliding with it.
func (c *Cache) SetHoldLock(ctx context.Context, slotID, periodID, buyerID string, ttl time.Duration) (bool, error) {
	key := "hold:" + periodID + ":" + slotID
	ok, err := c.client.SetNX(ctx, key, buyerID, ttl).Result()
	if err != nil || ok {
		return ok, err
	}
	owner, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return c.client.SetNX(ctx, key, buyerID, ttl).Result()
	}
	if err != nil {
		return false, err
	}
	if owner == buyerID {
		return true, c.client.Set(ctx, key, buyerID, ttl).Err()
	}
	return false, nil
}

func (c *Cache) ReleaseHoldLock(ctx context.Context, slotID, periodID string) error {
	return c.client.Del(ctx, "hold:"+periodID+":"+slotID).Err()
}
