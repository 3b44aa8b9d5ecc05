package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dejobratic/storefront/internal/coupons/app"
	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
)

// Handler exposes HTTP endpoints for coupon operations.
type Handler struct {
	service *app.Service
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register binds the coupon handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/coupons/apply", h.applyCoupon)
	mux.HandleFunc("POST /v1/coupons/{code}/redeem", h.redeemCoupon)

	mux.HandleFunc("POST /v1/admin/coupons", h.createCoupon)
	mux.HandleFunc("GET /v1/admin/coupons", h.listCoupons)
	mux.HandleFunc("GET /v1/admin/coupons/{code}", h.getCoupon)
	mux.HandleFunc("PUT /v1/admin/coupons/{code}", h.updateCoupon)
	mux.HandleFunc("PUT /v1/admin/coupons/{code}/active", h.setCouponActive)
	mux.HandleFunc("DELETE /v1/admin/coupons/{code}", h.deleteCoupon)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload applyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	cart, err := payload.cart()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.service.Apply(r.Context(), payload.Code, cart)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(result, true))
}

func (h *Handler) redeemCoupon(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Redeem(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	switch {
	case result.OK:
	case result.Reason == domain.ReasonNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusConflict
	}

	writeJSON(w, status, toResultResponse(result, false))
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	input, err := payload.input()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	coupon, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"coupon": toCouponResponse(*coupon)})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	var list app.ListQuery
	query := r.URL.Query()

	if activeParam := query.Get("active"); activeParam != "" {
		active, err := strconv.ParseBool(activeParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		list.Active = &active
	}

	var err error
	if list.Page, err = intParam(query.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	if list.PageSize, err = intParam(query.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be an integer")
		return
	}

	coupons, err := h.service.List(r.Context(), list)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		resp = append(resp, toCouponResponse(c))
	}

	writeJSON(w, http.StatusOK, map[string]any{"coupons": resp})
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.service.Get(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupon": toCouponResponse(*coupon)})
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	input, err := payload.input()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	coupon, err := h.service.Update(r.Context(), r.PathValue("code"), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"coupon": toCouponResponse(*coupon)})
}

func (h *Handler) setCouponActive(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	coupon, err := h.service.SetActive(r.Context(), r.PathValue("code"), *payload.IsActive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"coupon": toCouponResponse(*coupon)})
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("code")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, ports.ErrCodeTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "coupon request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
