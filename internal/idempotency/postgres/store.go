package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pendingStatus marks a row claimed by a checkout that has not finished.
const pendingStatus = 0

// Store keeps checkout responses in the idempotency_keys table.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore returns a Store whose keys stop replaying after ttl. A zero ttl
// keeps them forever.
func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Reserve inserts a pending row, or takes over an abandoned claim or an
// expired response, in one statement. Losing the race leaves the row as is.
func (s *Store) Reserve(ctx context.Context, key string) (*ports.StoredResponse, error) {
	claim := `
		INSERT INTO idempotency_keys (key, status_code, body, order_id)
		VALUES ($1, $2, ''::bytea, '')
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body        = EXCLUDED.body,
		    order_id    = EXCLUDED.order_id,
		    created_at  = NOW()
		WHERE (idempotency_keys.status_code = $2
		       AND idempotency_keys.created_at <= NOW() - make_interval(secs => $3::bigint))
		   OR (idempotency_keys.status_code <> $2
		       AND $4::bigint > 0
		       AND idempotency_keys.created_at <= NOW() - make_interval(secs => $4::bigint))
	`

	tag, err := s.pool.Exec(ctx, claim, key, pendingStatus, seconds(ports.ReservationLease), seconds(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var resp ports.StoredResponse
	err = s.pool.QueryRow(ctx,
		`SELECT status_code, body, order_id FROM idempotency_keys WHERE key = $1`, key,
	).Scan(&resp.StatusCode, &resp.Body, &resp.OrderID)
	if err != nil {
		// Released between the two statements; the caller may retry.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrRequestInFlight
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}
	if resp.StatusCode == pendingStatus {
		return nil, ports.ErrRequestInFlight
	}

	return &resp, nil
}

// Save records the response for key. Pending and expired rows are replaced,
// live responses win over later writers.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	query := `
		INSERT INTO idempotency_keys (key, status_code, body, order_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body        = EXCLUDED.body,
		    order_id    = EXCLUDED.order_id,
		    created_at  = NOW()
		WHERE idempotency_keys.status_code = $6
		   OR ($5::bigint > 0
		       AND idempotency_keys.created_at <= NOW() - make_interval(secs => $5::bigint))
	`

	_, err := s.pool.Exec(ctx, query, key, response.StatusCode, response.Body, response.OrderID, seconds(s.ttl), pendingStatus)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}

	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND status_code = $2`, key, pendingStatus)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
