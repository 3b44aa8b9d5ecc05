package queries

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*page_size a sane offset.
	MaxPage = 100_000
)

// ListOrdersQuery carries raw filter values as they arrive from a caller.
type ListOrdersQuery struct {
	Status        string
	PaymentStatus string
	CustomerEmail string
	Page          int
	PageSize      int
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	filter, err := query.Filter()
	if err != nil {
		return nil, err
	}
	return h.repo.List(ctx, filter)
}

// Filter parses the enums and clamps pagination.
func (q ListOrdersQuery) Filter() (ports.ListFilter, error) {
	filter := ports.ListFilter{
		CustomerEmail: strings.TrimSpace(q.CustomerEmail),
		Page:          q.Page,
		PageSize:      q.PageSize,
	}

	if q.Status != "" {
		status, err := domain.ParseStatus(q.Status)
		if err != nil {
			return ports.ListFilter{}, err
		}
		filter.Status = &status
	}
	if q.PaymentStatus != "" {
		status, err := domain.ParsePaymentStatus(q.PaymentStatus)
		if err != nil {
			return ports.ListFilter{}, err
		}
		filter.PaymentStatus = &status
	}

	if filter.Page < 0 || filter.PageSize < 0 {
		return ports.ListFilter{}, fmt.Errorf("%w: page and page_size must not be negative", domain.ErrInvalid)
	}
	if filter.Page > MaxPage {
		return ports.ListFilter{}, fmt.Errorf("%w: page must not exceed %d", domain.ErrInvalid, MaxPage)
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	return filter, nil
}
