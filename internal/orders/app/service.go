package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ErrTransitionNotAllowed is returned when a customer asks for a status change
// the order's current status does not allow.
var ErrTransitionNotAllowed = errors.New("transition not allowed")

var (
	cancellableFrom = []domain.OrderStatus{domain.StatusPending, domain.StatusConfirmed}
	returnableFrom  = []domain.OrderStatus{domain.StatusDelivered}
)

// Service bundles use cases for handling orders via the API.
type Service struct {
	repo              ports.OrderRepository
	events            ports.EventBus
	idemStore         ports.IdempotencyStore
	clock             func() time.Time
	logger            *slog.Logger
	metrics           *metrics.Metrics
	placeOrderHandler commands.CommandHandler
	getOrderHandler   *queries.GetOrderQueryHandler
	listOrdersHandler *queries.ListOrdersQueryHandler
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	events ports.EventBus,
	coupons ports.CouponEvaluator,
	idem ports.IdempotencyStore,
	pricing domain.Pricing,
	clock func() time.Time,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	coreHandler := commands.NewPlaceOrderCommandHandler(repo, events, coupons, pricing, clock, logger)
	observableHandler := commands.NewObservableCommandHandler(coreHandler, logger, metrics)

	return &Service{
		repo:              repo,
		events:            events,
		idemStore:         idem,
		clock:             clock,
		logger:            logger,
		metrics:           metrics,
		placeOrderHandler: observableHandler,
		getOrderHandler:   queries.NewGetOrderQueryHandler(repo),
		listOrdersHandler: queries.NewListOrdersQueryHandler(repo),
	}
}

// PlaceOrderInput captures the checkout payload.
type PlaceOrderInput struct {
	CustomerEmail string
	Items         []domain.Item
	CouponCode    string
	Notes         string
}

// PlaceOrder prices the cart, redeems the coupon and stores the order.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*commands.PlaceOrderResult, error) {
	cmd := commands.PlaceOrderCommand{
		CustomerEmail: input.CustomerEmail,
		Items:         input.Items,
		CouponCode:    input.CouponCode,
		Notes:         input.Notes,
	}
	return s.placeOrderHandler.Handle(ctx, cmd)
}

// GetOrder retrieves an order by ID with its progress and advisories.
func (s *Service) GetOrder(ctx context.Context, id string) (*queries.OrderView, error) {
	return s.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) ([]domain.Order, error) {
	return s.listOrdersHandler.Handle(ctx, query)
}

// Progress returns the tracker for a stored order.
func (s *Service) Progress(ctx context.Context, id string) (*domain.Progress, error) {
	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &view.Progress, nil
}

// StatusUpdateInput is an administrator's status write. Nil fields are left unchanged.
type StatusUpdateInput struct {
	Status            string
	TrackingNumber    *string
	ShippingCarrier   *string
	EstimatedDelivery *time.Time
	Notes             *string
}

// UpdateStatus sets any status from any status. Fulfilment is not gated by a
// transition table; inconsistencies surface as advisories on the result.
func (s *Service) UpdateStatus(ctx context.Context, id string, input StatusUpdateInput) (*queries.OrderView, error) {
	status, err := domain.ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	if input.TrackingNumber != nil {
		trimmed := strings.TrimSpace(*input.TrackingNumber)
		input.TrackingNumber = &trimmed
	}

	return s.changeStatus(ctx, id, domain.StatusUpdate{
		Status:            status,
		TrackingNumber:    input.TrackingNumber,
		ShippingCarrier:   input.ShippingCarrier,
		EstimatedDelivery: input.EstimatedDelivery,
		Notes:             input.Notes,
	})
}

// CancelOrder lets a customer cancel an order that has not started processing.
func (s *Service) CancelOrder(ctx context.Context, id string) (*queries.OrderView, error) {
	return s.changeStatus(ctx, id, domain.StatusUpdate{
		Status:      domain.StatusCancelled,
		AllowedFrom: cancellableFrom,
	})
}

// RequestReturn lets a customer ask to return a delivered order.
func (s *Service) RequestReturn(ctx context.Context, id string, reason string) (*queries.OrderView, error) {
	update := domain.StatusUpdate{
		Status:      domain.StatusReturnRequested,
		AllowedFrom: returnableFrom,
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		update.Notes = &reason
	}
	return s.changeStatus(ctx, id, update)
}

func (s *Service) changeStatus(ctx context.Context, id string, update domain.StatusUpdate) (*queries.OrderView, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderService.ChangeStatus")
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: order_id is required", domain.ErrInvalid)
	}
	update.UpdatedAt = s.clock().UTC()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.status", string(update.Status)),
	)

	change, err := s.repo.UpdateStatus(ctx, id, update)
	if err != nil {
		if errors.Is(err, ports.ErrStatusConflict) {
			err = fmt.Errorf("%w: cannot move order to %s", ErrTransitionNotAllowed, update.Status)
		}
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	s.metrics.RecordStatusChange(ctx, "order", string(change.Previous), string(change.Order.Status))
	s.logger.InfoContext(ctx, "order status changed",
		"order_id", id,
		"from", change.Previous,
		"to", change.Order.Status,
	)

	if err := s.events.PublishOrderStatusChanged(ctx, id, string(change.Previous), string(change.Order.Status)); err != nil {
		s.logger.WarnContext(ctx, "status saved but failed to publish event", "error", err, "order_id", id)
	}

	telemetry.SetSpanSuccess(span)
	view := queries.NewOrderView(change.Order)
	return &view, nil
}

// UpdatePaymentStatus sets the payment axis independently of fulfilment.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status string) (*queries.OrderView, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderService.UpdatePaymentStatus")
	defer span.End()

	payment, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: order_id is required", domain.ErrInvalid)
	}

	change, err := s.repo.UpdatePaymentStatus(ctx, id, ports.PaymentUpdate{
		Status:    payment,
		UpdatedAt: s.clock().UTC(),
	})
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	s.metrics.RecordStatusChange(ctx, "payment", string(change.Previous), string(change.Order.PaymentStatus))
	s.logger.InfoContext(ctx, "payment status changed",
		"order_id", id,
		"from", change.Previous,
		"to", change.Order.PaymentStatus,
	)

	if err := s.events.PublishPaymentStatusChanged(ctx, id, string(change.Previous), string(change.Order.PaymentStatus)); err != nil {
		s.logger.WarnContext(ctx, "payment status saved but failed to publish event", "error", err, "order_id", id)
	}

	telemetry.SetSpanSuccess(span)
	view := queries.NewOrderView(change.Order)
	return &view, nil
}

// ReserveIdempotencyKey claims key for a checkout. A non-nil response means
// the key already completed and should be replayed.
func (s *Service) ReserveIdempotencyKey(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Reserve(ctx, key)
}

// SaveIdempotentResponse completes the claim on key with the response sent.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// ReleaseIdempotencyKey gives up a claim whose checkout produced no stored response.
func (s *Service) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.idemStore.Release(ctx, key)
}
