package ports

import (
	"context"

	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
)

// CouponEvaluator validates a coupon against a cart at checkout. It must not
// consume a redemption; that happens inside OrderRepository.Create.
type CouponEvaluator interface {
	Apply(ctx context.Context, code string, cart coupondomain.Cart) (coupondomain.Result, error)
}
