package http

import (
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/money"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

type itemRequest struct {
	ProductID  string          `json:"product_id"`
	VariantID  string          `json:"variant_id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Size       string          `json:"size"`
	Color      string          `json:"color"`
}

type placeOrderRequest struct {
	CustomerEmail string        `json:"customer_email"`
	Items         []itemRequest `json:"items"`
	CouponCode    string        `json:"coupon_code"`
	Notes         string        `json:"notes"`
}

func (r placeOrderRequest) input() (app.PlaceOrderInput, error) {
	items := make([]domain.Item, 0, len(r.Items))
	for i, item := range r.Items {
		price, err := money.ParseMinor(item.UnitPrice)
		if err != nil {
			return app.PlaceOrderInput{}, fmt.Errorf("%w: items[%d].unit_price: %w", domain.ErrInvalid, i, err)
		}
		items = append(items, domain.Item{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			CategoryID:     item.CategoryID,
			Quantity:       item.Quantity,
			UnitPriceCents: price,
			Size:           item.Size,
			Color:          item.Color,
		})
	}

	return app.PlaceOrderInput{
		CustomerEmail: r.CustomerEmail,
		Items:         items,
		CouponCode:    r.CouponCode,
		Notes:         r.Notes,
	}, nil
}

type statusUpdateRequest struct {
	Status            string     `json:"status"`
	TrackingNumber    *string    `json:"tracking_number"`
	ShippingCarrier   *string    `json:"shipping_carrier"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	Notes             *string    `json:"notes"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type returnRequest struct {
	Reason string `json:"reason"`
}

type itemResponse struct {
	ProductID  string          `json:"product_id"`
	VariantID  string          `json:"variant_id,omitempty"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Size       string          `json:"size,omitempty"`
	Color      string          `json:"color,omitempty"`
}

type orderResponse struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	CustomerEmail     string          `json:"customer_email"`
	Status            string          `json:"status"`
	StatusLabel       string          `json:"status_label"`
	PaymentStatus     string          `json:"payment_status"`
	Items             []itemResponse  `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	Tax               decimal.Decimal `json:"tax"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	ShippingCarrier   string          `json:"shipping_carrier,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, itemResponse{
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Name:       item.Name,
			CategoryID: item.CategoryID,
			Quantity:   item.Quantity,
			UnitPrice:  money.FromMinor(item.UnitPriceCents),
			LineTotal:  money.FromMinor(item.LineTotalCents()),
			Size:       item.Size,
			Color:      item.Color,
		})
	}

	return orderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		CustomerEmail:     o.CustomerEmail,
		Status:            string(o.Status),
		StatusLabel:       o.Status.Label(),
		PaymentStatus:     string(o.PaymentStatus),
		Items:             items,
		Subtotal:          money.FromMinor(o.SubtotalCents),
		Discount:          money.FromMinor(o.DiscountCents),
		Tax:               money.FromMinor(o.TaxCents),
		Shipping:          money.FromMinor(o.ShippingCents),
		Total:             money.FromMinor(o.TotalCents),
		CouponCode:        o.CouponCode,
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		EstimatedDelivery: o.EstimatedDelivery,
		Notes:             o.Notes,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

type orderViewResponse struct {
	Order      orderResponse     `json:"order"`
	Progress   domain.Progress   `json:"progress"`
	Advisories []domain.Advisory `json:"advisories"`
}

func toOrderViewResponse(v queries.OrderView) orderViewResponse {
	return orderViewResponse{
		Order:      toOrderResponse(v.Order),
		Progress:   v.Progress,
		Advisories: v.Advisories,
	}
}
