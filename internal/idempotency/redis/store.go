package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix     = "idempotency:"
	pendingMarker = "pending"
)

var saveScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type storedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
	OrderID    string `json:"order_id"`
}

// Store keeps checkout responses in redis with a TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses redisURL, verifies connectivity and returns a Store.
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Store{rdb: rdb, ttl: ttl}, nil
}

// Reserve claims key with SET NX of a pending marker that expires after the
// reservation lease.
func (s *Store) Reserve(ctx context.Context, key string) (*ports.StoredResponse, error) {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, pendingMarker, ports.ReservationLease).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		// Released or expired between the two calls; the caller may retry.
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrRequestInFlight
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if raw == pendingMarker {
		return nil, ports.ErrRequestInFlight
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}

	return &ports.StoredResponse{
		StatusCode: stored.StatusCode,
		Body:       stored.Body,
		OrderID:    stored.OrderID,
	}, nil
}

// Save replaces a pending marker or a missing key. A completed response is kept.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	raw, err := json.Marshal(storedResponse(response))
	if err != nil {
		return fmt.Errorf("encode idempotency key: %w", err)
	}

	if err := saveScript.Run(ctx, s.rdb, []string{keyPrefix + key}, raw, pendingMarker, s.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// Release deletes the key only while it still holds the pending marker.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{keyPrefix + key}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Ping satisfies database.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
