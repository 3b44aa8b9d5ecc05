package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
)

// Repository provides an in-memory coupon store useful for local development and tests.
type Repository struct {
	mu      sync.RWMutex
	coupons map[string]domain.Coupon
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{coupons: make(map[string]domain.Coupon)}
}

// Create stores a new coupon, rejecting duplicate codes.
func (r *Repository) Create(_ context.Context, coupon domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.coupons[coupon.Code]; exists {
		return ports.ErrCodeTaken
	}
	r.coupons[coupon.Code] = clone(coupon)
	return nil
}

// GetByCode fetches a single coupon by its normalized code.
func (r *Repository) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	coupon, ok := r.coupons[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	c := clone(coupon)
	return &c, nil
}

// List returns coupons ordered by code. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Coupon
	for _, coupon := range r.coupons {
		if filter.Active != nil && coupon.IsActive != *filter.Active {
			continue
		}
		result = append(result, clone(coupon))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Coupon{}, nil
	}
	end := min(start+pageSize, len(result))

	return result[start:end], nil
}

// Update overwrites the editable fields while keeping the live usage count.
func (r *Repository) Update(_ context.Context, coupon domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.coupons[coupon.Code]
	if !ok {
		return ports.ErrNotFound
	}
	coupon.UsageCount = existing.UsageCount
	coupon.CreatedAt = existing.CreatedAt
	r.coupons[coupon.Code] = clone(coupon)
	return nil
}

// Delete removes a coupon.
func (r *Repository) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coupons[code]; !ok {
		return ports.ErrNotFound
	}
	delete(r.coupons, code)
	return nil
}

// Redeem increments the usage counter if a slot remains. Check and increment
// happen under one lock.
func (r *Repository) Redeem(_ context.Context, code string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok {
		return ports.ErrNotFound
	}
	if reason := coupon.Redeemable(at); reason != "" {
		return ports.RedeemError(reason)
	}
	coupon.UsageCount++
	coupon.UpdatedAt = time.Now().UTC()
	r.coupons[code] = coupon
	return nil
}

// Release gives back a slot taken by Redeem when the surrounding write failed.
func (r *Repository) Release(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok {
		return ports.ErrNotFound
	}
	if coupon.UsageCount > 0 {
		coupon.UsageCount--
		coupon.UpdatedAt = time.Now().UTC()
		r.coupons[code] = coupon
	}
	return nil
}

func clone(c domain.Coupon) domain.Coupon {
	c.ApplicableCategories = slices.Clone(c.ApplicableCategories)
	c.ApplicableProducts = slices.Clone(c.ApplicableProducts)
	return c
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}
