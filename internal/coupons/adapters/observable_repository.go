package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservableRepository struct {
	repo    ports.CouponRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.CouponRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, coupon domain.Coupon) error {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", coupon.Code),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, coupon)
	r.finish(ctx, span, "create_coupon", start, err)

	return err
}

func (r *ObservableRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.GetByCode")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", code),
		attribute.String("operation", "get_by_code"),
	)

	start := time.Now()
	coupon, err := r.repo.GetByCode(ctx, code)
	r.finish(ctx, span, "get_coupon_by_code", start, err)

	return coupon, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Coupon, error) {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Active != nil {
		attrs = append(attrs, attribute.Bool("filter.active", *filter.Active))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	coupons, err := r.repo.List(ctx, filter)
	r.finish(ctx, span, "list_coupons", start, err)
	if err != nil {
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(coupons)))
	return coupons, nil
}

func (r *ObservableRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.Update")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", coupon.Code),
		attribute.String("operation", "update"),
	)

	start := time.Now()
	err := r.repo.Update(ctx, coupon)
	r.finish(ctx, span, "update_coupon", start, err)

	return err
}

func (r *ObservableRepository) Delete(ctx context.Context, code string) error {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.Delete")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", code),
		attribute.String("operation", "delete"),
	)

	start := time.Now()
	err := r.repo.Delete(ctx, code)
	r.finish(ctx, span, "delete_coupon", start, err)

	return err
}

func (r *ObservableRepository) Redeem(ctx context.Context, code string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.Redeem")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", code),
		attribute.String("operation", "redeem"),
	)

	start := time.Now()
	err := r.repo.Redeem(ctx, code, at)
	r.finish(ctx, span, "redeem_coupon", start, err)

	return err
}

func (r *ObservableRepository) Release(ctx context.Context, code string) error {
	ctx, span := telemetry.StartSpan(ctx, "CouponRepository.Release")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("coupon.code", code),
		attribute.String("operation", "release"),
	)

	start := time.Now()
	err := r.repo.Release(ctx, code)
	r.finish(ctx, span, "release_coupon", start, err)

	return err
}

func (r *ObservableRepository) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if isDomainOutcome(err) {
		telemetry.AddSpanAttributes(span, attribute.String("outcome", err.Error()))
		err = nil
	}

	r.metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)
	telemetry.CompleteSpan(span, err)
}

func isDomainOutcome(err error) bool {
	if _, ok := ports.RejectionReason(err); ok {
		return true
	}
	return errors.Is(err, ports.ErrCodeTaken)
}
