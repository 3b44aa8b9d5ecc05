package commands

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

const (
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	orderNumberAttempts = 3
)

type PlaceOrderCommand struct {
	CustomerEmail string
	Items         []domain.Item
	CouponCode    string
	Notes         string
}

func (c PlaceOrderCommand) Validate() error {
	if strings.TrimSpace(c.CustomerEmail) == "" {
		return fmt.Errorf("%w: customer_email is required", domain.ErrInvalid)
	}
	if !strings.Contains(c.CustomerEmail, "@") {
		return fmt.Errorf("%w: customer_email must be valid", domain.ErrInvalid)
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrInvalid)
	}
	return nil
}

// PlaceOrderResult carries either the stored order or the reason the attached
// coupon was refused. A refused coupon leaves nothing persisted.
type PlaceOrderResult struct {
	Order           *domain.Order
	CouponRejection coupondomain.Reason
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd PlaceOrderCommand) (*PlaceOrderResult, error)
}

type PlaceOrderCommandHandler struct {
	repo    ports.OrderRepository
	events  ports.EventBus
	coupons ports.CouponEvaluator
	pricing domain.Pricing
	clock   func() time.Time
	logger  *slog.Logger
}

func NewPlaceOrderCommandHandler(
	repo ports.OrderRepository,
	events ports.EventBus,
	coupons ports.CouponEvaluator,
	pricing domain.Pricing,
	clock func() time.Time,
	logger *slog.Logger,
) *PlaceOrderCommandHandler {
	return &PlaceOrderCommandHandler{
		repo:    repo,
		events:  events,
		coupons: coupons,
		pricing: pricing,
		clock:   clock,
		logger:  logger,
	}
}

func (h *PlaceOrderCommandHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*PlaceOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	subtotal, err := domain.SubtotalOf(cmd.Items)
	if err != nil {
		return nil, err
	}
	code := coupondomain.NormalizeCode(cmd.CouponCode)

	var discount int64
	if code != "" {
		result, err := h.coupons.Apply(ctx, code, cartOf(subtotal, cmd.Items))
		if err != nil {
			return nil, err
		}
		if !result.OK {
			return &PlaceOrderResult{CouponRejection: result.Reason}, nil
		}
		discount = result.DiscountCents
	}

	totals := h.pricing.Compute(subtotal, discount)
	now := h.clock().UTC()

	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerEmail: strings.TrimSpace(cmd.CustomerEmail),
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		Items:         cmd.Items,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		TaxCents:      totals.TaxCents,
		ShippingCents: totals.ShippingCents,
		TotalCents:    totals.TotalCents,
		CouponCode:    code,
		Notes:         cmd.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.create(ctx, &order); err != nil {
		if reason, ok := couponports.RejectionReason(err); ok {
			return &PlaceOrderResult{CouponRejection: reason}, nil
		}
		return nil, err
	}

	if err := h.events.PublishOrderPlaced(ctx, order.ID, order.OrderNumber, order.CouponCode); err != nil {
		h.logger.WarnContext(ctx, "order saved but failed to publish event", "error", err, "order_id", order.ID)
	}
	if order.CouponCode != "" {
		if err := h.events.PublishCouponRedeemed(ctx, order.CouponCode, order.ID); err != nil {
			h.logger.WarnContext(ctx, "coupon redeemed but failed to publish event", "error", err, "order_id", order.ID)
		}
	}

	return &PlaceOrderResult{Order: &order}, nil
}

// create retries with a fresh order number when the random suffix collides.
func (h *PlaceOrderCommandHandler) create(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber, err = generateOrderNumber(order.CreatedAt)
		if err != nil {
			return err
		}

		err = h.repo.Create(ctx, *order)
		if !errors.Is(err, ports.ErrDuplicateOrderNumber) {
			return err
		}
	}
	return err
}

func cartOf(subtotal int64, items []domain.Item) coupondomain.Cart {
	cart := coupondomain.Cart{SubtotalCents: subtotal}
	for _, item := range items {
		cart.ProductIDs = append(cart.ProductIDs, item.ProductID)
		if item.CategoryID != "" {
			cart.CategoryIDs = append(cart.CategoryIDs, item.CategoryID)
		}
	}
	return cart
}

// generateOrderNumber returns ORD-YYYYMMDD-XXXXXX.
func generateOrderNumber(at time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "ORD-" + at.Format("20060102") + "-" + string(buf), nil
}
