package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/metrics"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Service bundles coupon use cases for shoppers and administrators.
type Service struct {
	repo    ports.CouponRepository
	events  ports.EventBus
	clock   ports.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService wires required dependencies.
func NewService(
	repo ports.CouponRepository,
	events ports.EventBus,
	clock ports.Clock,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CouponInput carries the administrator-editable coupon fields.
type CouponInput struct {
	Code                 string
	Description          string
	DiscountType         domain.DiscountType
	DiscountValue        decimal.Decimal
	MinimumPurchaseCents int64
	StartDate            time.Time
	ExpiryDate           time.Time
	UsageLimit           int
	IsActive             bool
	AppliesTo            domain.Scope
	ApplicableCategories []string
	ApplicableProducts   []string
}

// Apply evaluates a coupon against a cart without consuming a redemption.
func (s *Service) Apply(ctx context.Context, code string, cart domain.Cart) (domain.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "CouponService.Apply")
	defer span.End()

	if cart.SubtotalCents < 0 {
		err := fmt.Errorf("%w: cart subtotal must not be negative", domain.ErrInvalid)
		telemetry.RecordSpanError(span, err)
		return domain.Result{}, err
	}

	code = domain.NormalizeCode(code)
	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", code),
		attribute.Int64("cart.subtotal_cents", cart.SubtotalCents),
	)

	result, err := s.evaluate(ctx, code, cart)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		s.logger.ErrorContext(ctx, "failed to evaluate coupon", "error", err, "coupon_code", code)
		return domain.Result{}, err
	}

	s.metrics.RecordValidation(ctx, result)
	telemetry.AddSpanAttributes(span,
		attribute.Bool("coupon.ok", result.OK),
		attribute.String("coupon.reason", string(result.Reason)),
	)
	s.logger.DebugContext(ctx, "coupon evaluated",
		"coupon_code", code,
		"ok", result.OK,
		"reason", result.Reason,
		"discount_cents", result.DiscountCents,
	)

	telemetry.SetSpanSuccess(span)
	return result, nil
}

func (s *Service) evaluate(ctx context.Context, code string, cart domain.Cart) (domain.Result, error) {
	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.Reject(domain.ReasonNotFound), nil
		}
		return domain.Result{}, err
	}
	return coupon.Evaluate(cart, s.clock()), nil
}

// Redeem consumes one redemption slot outside of checkout. Refusals from the
// guarded write are reported as rejected results.
func (s *Service) Redeem(ctx context.Context, code string) (domain.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "CouponService.Redeem")
	defer span.End()

	code = domain.NormalizeCode(code)
	telemetry.AddSpanAttributes(span, attribute.String("coupon.code", code))

	var result domain.Result
	err := s.repo.Redeem(ctx, code, s.clock())
	reason, rejected := ports.RejectionReason(err)
	switch {
	case err == nil:
		result = domain.Accept(0)
	case rejected:
		result = domain.Reject(reason)
	default:
		telemetry.RecordSpanError(span, err)
		s.logger.ErrorContext(ctx, "failed to redeem coupon", "error", err, "coupon_code", code)
		return domain.Result{}, err
	}

	s.metrics.RecordRedemption(ctx, result)

	if result.OK {
		if err := s.events.PublishCouponRedeemed(ctx, code, ""); err != nil {
			s.logger.WarnContext(ctx, "failed to publish coupon redeemed event", "error", err, "coupon_code", code)
		}
	}

	telemetry.SetSpanSuccess(span)
	return result, nil
}

// Create registers a new coupon. The code is normalized before validation.
func (s *Service) Create(ctx context.Context, input CouponInput) (*domain.Coupon, error) {
	now := s.clock()

	coupon := input.toCoupon()
	if coupon.StartDate.IsZero() {
		coupon.StartDate = now
	}
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	if err := coupon.ValidateNew(now); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon created",
		"coupon_code", coupon.Code,
		"discount_type", coupon.DiscountType,
		"discount_value", coupon.DiscountValue.String(),
	)

	return &coupon, nil
}

// Get retrieves a coupon by code.
func (s *Service) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	return s.repo.GetByCode(ctx, domain.NormalizeCode(code))
}

// List returns a page of coupons, optionally only active or inactive ones.
func (s *Service) List(ctx context.Context, query ListQuery) ([]domain.Coupon, error) {
	filter, err := query.Filter()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Update replaces the editable fields of an existing coupon. The code in the
// path wins over the one in the input, and usage_count is never reset.
func (s *Service) Update(ctx context.Context, code string, input CouponInput) (*domain.Coupon, error) {
	existing, err := s.repo.GetByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	updated := input.toCoupon()
	updated.Code = existing.Code
	updated.UsageCount = existing.UsageCount
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.clock()
	if updated.StartDate.IsZero() {
		updated.StartDate = existing.StartDate
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon updated", "coupon_code", updated.Code)

	return &updated, nil
}

// SetActive toggles is_active without touching the date window.
func (s *Service) SetActive(ctx context.Context, code string, active bool) (*domain.Coupon, error) {
	coupon, err := s.repo.GetByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	coupon.IsActive = active
	coupon.UpdatedAt = s.clock()

	if err := s.repo.Update(ctx, *coupon); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon activation changed", "coupon_code", coupon.Code, "is_active", active)

	return coupon, nil
}

// Delete removes a coupon. Orders keep their own snapshot of the code.
func (s *Service) Delete(ctx context.Context, code string) error {
	code = domain.NormalizeCode(code)
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "coupon deleted", "coupon_code", code)
	return nil
}

func (in CouponInput) toCoupon() domain.Coupon {
	scope := in.AppliesTo
	if scope == "" {
		scope = domain.ScopeAll
	}

	return domain.Coupon{
		Code:                 domain.NormalizeCode(in.Code),
		Description:          in.Description,
		DiscountType:         in.DiscountType,
		DiscountValue:        in.DiscountValue,
		MinimumPurchaseCents: in.MinimumPurchaseCents,
		StartDate:            in.StartDate.UTC(),
		ExpiryDate:           in.ExpiryDate.UTC(),
		UsageLimit:           in.UsageLimit,
		IsActive:             in.IsActive,
		AppliesTo:            scope,
		ApplicableCategories: in.ApplicableCategories,
		ApplicableProducts:   in.ApplicableProducts,
	}
}
