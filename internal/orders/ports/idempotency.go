package ports

import (
	"context"
	"errors"
	"time"
)

// ReservationLease bounds how long an unfinished claim blocks its key. A claim
// older than this is treated as abandoned by a crashed request.
const ReservationLease = time.Minute

// ErrRequestInFlight is returned by Reserve while another request holds the key.
var ErrRequestInFlight = errors.New("a request with this idempotency key is in progress")

// StoredResponse is the checkout response replayed when an Idempotency-Key is
// reused. Refused checkouts (422) are stored too.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// IdempotencyStore remembers the first response per key. Expired keys behave
// as unknown.
type IdempotencyStore interface {
	// Reserve claims key for a new checkout in one atomic step. It returns the
	// stored response when the key has completed, ErrRequestInFlight while
	// another claim is live, and nil, nil when the caller now owns the key.
	Reserve(ctx context.Context, key string) (*StoredResponse, error)
	// Save completes a claim. It never overwrites a live completed response.
	Save(ctx context.Context, key string, response StoredResponse) error
	// Release drops an unfinished claim so the key can be retried.
	Release(ctx context.Context, key string) error
}
