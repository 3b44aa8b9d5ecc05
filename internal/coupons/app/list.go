package app

import (
	"fmt"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*page_size a sane offset.
	MaxPage = 100_000
)

// ListQuery carries raw list parameters as they arrive from a caller.
type ListQuery struct {
	Active   *bool
	Page     int
	PageSize int
}

// Filter validates pagination and applies defaults and the page size cap.
func (q ListQuery) Filter() (ports.ListFilter, error) {
	if q.Page < 0 || q.PageSize < 0 {
		return ports.ListFilter{}, fmt.Errorf("%w: page and page_size must not be negative", domain.ErrInvalid)
	}
	if q.Page > MaxPage {
		return ports.ListFilter{}, fmt.Errorf("%w: page must not exceed %d", domain.ErrInvalid, MaxPage)
	}

	filter := ports.ListFilter{Active: q.Active, Page: q.Page, PageSize: q.PageSize}
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
