package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	service *app.Service
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register binds the order handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.placeOrder)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /v1/orders/{id}/progress", h.getOrderProgress)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /v1/orders/{id}/return-request", h.requestReturn)
	mux.HandleFunc("GET /v1/order-progress", h.progressForStatus)
	mux.HandleFunc("PATCH /v1/admin/orders/{id}/status", h.updateStatus)
	mux.HandleFunc("PATCH /v1/admin/orders/{id}/payment-status", h.updatePaymentStatus)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if idemKey == "" {
		writeError(w, http.StatusBadRequest, "Idempotency-Key header required")
		return
	}

	stored, err := h.service.ReserveIdempotencyKey(ctx, idemKey)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if stored != nil {
		for key, values := range restoreHeaders() {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(stored.StatusCode)
		_, _ = w.Write(stored.Body)
		return
	}

	// Until a response is saved the claim is ours; give it back on every
	// other exit so the client can retry with the same key.
	saved := false
	defer func() {
		if saved {
			return
		}
		if err := h.service.ReleaseIdempotencyKey(context.WithoutCancel(ctx), idemKey); err != nil {
			h.logger.WarnContext(ctx, "failed to release idempotency key", "error", err)
		}
	}()

	var payload placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	input, err := payload.input()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.service.PlaceOrder(ctx, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	var reply any
	var orderID string
	if result.Order == nil {
		status = http.StatusUnprocessableEntity
		reply = map[string]any{"error": "coupon rejected", "reason": result.CouponRejection}
	} else {
		orderID = result.Order.ID
		reply = map[string]any{"order": toOrderViewResponse(queries.NewOrderView(*result.Order))}
	}

	body, err := json.Marshal(reply)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response := ports.StoredResponse{
		StatusCode: status,
		Body:       body,
		OrderID:    orderID,
	}

	// The order is already committed, so a failed save must not turn into a
	// 500. The claim then lapses after the reservation lease.
	saved = true
	if err := h.service.SaveIdempotentResponse(context.WithoutCancel(ctx), idemKey, response); err != nil {
		h.logger.WarnContext(ctx, "failed to store idempotent response",
			"error", err,
			"order_id", orderID,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

func (h *Handler) getOrderProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) progressForStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "status query parameter required")
		return
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ProgressFor(status))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := queries.ListOrdersQuery{
		Status:        params.Get("status"),
		PaymentStatus: params.Get("payment_status"),
		CustomerEmail: params.Get("email"),
	}

	var err error
	if query.Page, err = intParam(params.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	if query.PageSize, err = intParam(params.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be an integer")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

func (h *Handler) requestReturn(w http.ResponseWriter, r *http.Request) {
	var payload returnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	view, err := h.service.RequestReturn(r.Context(), r.PathValue("id"), payload.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	view, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), app.StatusUpdateInput{
		Status:            payload.Status,
		TrackingNumber:    payload.TrackingNumber,
		ShippingCarrier:   payload.ShippingCarrier,
		EstimatedDelivery: payload.EstimatedDelivery,
		Notes:             payload.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var payload paymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	view, err := h.service.UpdatePaymentStatus(r.Context(), r.PathValue("id"), payload.PaymentStatus)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewResponse(*view))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPaymentStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, app.ErrTransitionNotAllowed),
		errors.Is(err, ports.ErrDuplicateOrderNumber),
		errors.Is(err, ports.ErrRequestInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "order request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// restoreHeaders marks a replayed checkout response.
func restoreHeaders() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Idempotent-Replayed", "true")
	return header
}
