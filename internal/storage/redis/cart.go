// Package redis persists carts in Redis under a fixed key namespace, so a
// session's cart survives server restarts.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/velaluna/storefront-api/internal/domain/cart"
)

// keyPrefix namespaces cart keys. Carts are the only state this service
// keeps in Redis.
const keyPrefix = "cart:"

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage implements cart.Storage on a Redis client. Carts expire after
// TTL without activity; every save refreshes the clock.
type CartStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStorage creates a CartStorage. A non-positive ttl defaults to
// thirty days.
func NewCartStorage(client *redis.Client, ttl time.Duration) *CartStorage {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &CartStorage{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Load returns the stored cart for the session, or cart.ErrNotFound.
func (s *CartStorage) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart")
	}
	return &c, nil
}

// Save stores the cart and refreshes its expiry.
func (s *CartStorage) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := s.client.Set(ctx, key(sessionID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Delete removes the session's cart.
func (s *CartStorage) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
