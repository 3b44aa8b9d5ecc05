package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
	pending  bool
}

// Store keeps checkout responses in process memory. Entries older than the
// TTL are treated as absent; a zero TTL keeps them forever.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{items: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Reserve(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok {
		if e.pending {
			return nil, ports.ErrRequestInFlight
		}
		response := e.response
		return &response, nil
	}

	s.items[key] = entry{pending: true, savedAt: s.now()}
	return nil, nil
}

// Save records the response for key unless a live completed one is already stored.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok && !e.pending {
		return nil
	}

	response.Body = append([]byte(nil), response.Body...)
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok && e.pending {
		delete(s.items, key)
	}
	return nil
}

// live must be called with mu held. Expired entries are dropped on access.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.items[key]
	if !ok {
		return entry{}, false
	}

	age := s.now().Sub(e.savedAt)
	expired := s.ttl > 0 && age >= s.ttl
	if e.pending {
		expired = age >= ports.ReservationLease
	}
	if expired {
		delete(s.items, key)
		return entry{}, false
	}
	return e, true
}
