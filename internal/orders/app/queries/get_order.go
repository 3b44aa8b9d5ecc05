package queries

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID string
}

// OrderView is an order together with its tracker and the inconsistencies
// an administrator should look at.
type OrderView struct {
	Order      domain.Order      `json:"order"`
	Progress   domain.Progress   `json:"progress"`
	Advisories []domain.Advisory `json:"advisories"`
}

// NewOrderView derives the progress and advisories for o.
func NewOrderView(o domain.Order) OrderView {
	advisories := domain.Advisories(o)
	if advisories == nil {
		advisories = []domain.Advisory{}
	}
	return OrderView{
		Order:      o,
		Progress:   domain.ProgressFor(o.Status),
		Advisories: advisories,
	}
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if found.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle executes the query and retrieves the order.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*OrderView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, strings.TrimSpace(query.OrderID))
	if err != nil {
		return nil, err
	}

	view := NewOrderView(*order)
	return &view, nil
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrInvalid)
	}
	return nil
}
