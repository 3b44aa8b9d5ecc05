package adapters

import (
	"context"
	"errors"
	"time"

	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
		attribute.String("order.coupon_code", order.CouponCode),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order)
	r.finish(ctx, span, "create_order", start, err)

	return err
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByID(ctx, id)
	r.finish(ctx, span, "get_order_by_id", start, err)

	return order, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.PaymentStatus != nil {
		attrs = append(attrs, attribute.String("filter.payment_status", string(*filter.PaymentStatus)))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	orders, err := r.repo.List(ctx, filter)
	r.finish(ctx, span, "list_orders", start, err)
	if err != nil {
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
	return orders, nil
}

func (r *ObservableRepository) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*ports.StatusChange, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.new_status", string(update.Status)),
		attribute.Bool("guarded", len(update.AllowedFrom) > 0),
		attribute.String("operation", "update_status"),
	)

	start := time.Now()
	change, err := r.repo.UpdateStatus(ctx, id, update)
	r.finish(ctx, span, "update_order_status", start, err)

	return change, err
}

func (r *ObservableRepository) UpdatePaymentStatus(ctx context.Context, id string, update ports.PaymentUpdate) (*ports.PaymentChange, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.UpdatePaymentStatus")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.new_payment_status", string(update.Status)),
		attribute.String("operation", "update_payment_status"),
	)

	start := time.Now()
	change, err := r.repo.UpdatePaymentStatus(ctx, id, update)
	r.finish(ctx, span, "update_order_payment_status", start, err)

	return change, err
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
	return errors.Is(err, ports.ErrNotFound) ||
		errors.Is(err, ports.ErrDuplicateOrderNumber) ||
		errors.Is(err, ports.ErrStatusConflict) ||
		isCouponRefusal(err)
}

func isCouponRefusal(err error) bool {
	_, ok := couponports.RejectionReason(err)
	return ok
}
