package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	numbers  map[string]string
	redeemer couponports.Redeemer
}

// NewRepository constructs a new in-memory repository. Coupon redemptions at
// checkout go through redeemer.
func NewRepository(redeemer couponports.Redeemer) *Repository {
	return &Repository{
		orders:   make(map[string]domain.Order),
		numbers:  make(map[string]string),
		redeemer: redeemer,
	}
}

// Create stores a new order. The coupon redemption and the insert happen in
// one critical section; a failed insert releases the redemption.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.CouponCode != "" {
		if err := r.redeemer.Redeem(ctx, order.CouponCode, order.CreatedAt); err != nil {
			return err
		}
	}

	_, idTaken := r.orders[order.ID]
	_, numberTaken := r.numbers[order.OrderNumber]
	if idTaken || numberTaken {
		if order.CouponCode != "" {
			if err := r.redeemer.Release(ctx, order.CouponCode); err != nil {
				return err
			}
		}
		return ports.ErrDuplicateOrderNumber
	}

	r.orders[order.ID] = clone(order)
	r.numbers[order.OrderNumber] = order.ID
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	c := clone(order)
	return &c, nil
}

// List returns orders respecting the provided filter, newest first. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.PaymentStatus != nil && order.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		if filter.CustomerEmail != "" && order.CustomerEmail != filter.CustomerEmail {
			continue
		}
		result = append(result, clone(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := min(start+pageSize, len(result))
	return result[start:end], nil
}

// UpdateStatus writes the update verbatim unless its AllowedFrom guard refuses
// the stored status.
func (r *Repository) UpdateStatus(_ context.Context, id string, update domain.StatusUpdate) (*ports.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if !update.Permits(order.Status) {
		return nil, ports.ErrStatusConflict
	}

	previous := order.Status
	order.Apply(update)
	r.orders[id] = order

	return &ports.StatusChange{Order: clone(order), Previous: previous}, nil
}

// UpdatePaymentStatus sets the payment axis without touching the order status.
func (r *Repository) UpdatePaymentStatus(_ context.Context, id string, update ports.PaymentUpdate) (*ports.PaymentChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}

	previous := order.PaymentStatus
	order.PaymentStatus = update.Status
	order.UpdatedAt = update.UpdatedAt
	r.orders[id] = order

	return &ports.PaymentChange{Order: clone(order), Previous: previous}, nil
}

func clone(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	if order.EstimatedDelivery != nil {
		eta := *order.EstimatedDelivery
		order.EstimatedDelivery = &eta
	}
	return order
}
