package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/money"
)

// MaxQuantity caps a single line so line totals stay within int64.
const MaxQuantity = 10_000

// OrderStatus captures the fulfilment lifecycle of an order.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusConfirmed       OrderStatus = "confirmed"
	StatusProcessing      OrderStatus = "processing"
	StatusShipped         OrderStatus = "shipped"
	StatusDelivered       OrderStatus = "delivered"
	StatusCancelled       OrderStatus = "cancelled"
	StatusReturned        OrderStatus = "returned"
	StatusReturnRequested OrderStatus = "return_requested"
)

// PaymentStatus is tracked independently of OrderStatus.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var (
	// ErrInvalid marks orders that break a field rule or the totals invariant.
	ErrInvalid = errors.New("invalid order")
	// ErrInvalidStatus is returned for values outside the OrderStatus enum.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidPaymentStatus is returned for values outside the PaymentStatus enum.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

var statuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered,
	StatusCancelled, StatusReturned, StatusReturnRequested,
}

var paymentStatuses = []PaymentStatus{
	PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentRefunded,
}

// Statuses lists every order status in display order.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, len(statuses))
	copy(out, statuses)
	return out
}

// ParseStatus accepts any member of the enum, case-insensitively.
func ParseStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParsePaymentStatus accepts any member of the enum, case-insensitively.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	candidate := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, s)
}

func (s OrderStatus) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	for _, known := range paymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label formats a status for display, e.g. "Return Requested".
func (s OrderStatus) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Item is a snapshot of a purchased product taken at checkout.
type Item struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Name           string `json:"name"`
	CategoryID     string `json:"category_id,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
}

// LineTotalCents returns quantity times unit price.
func (i Item) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// Order represents a placed purchase and its fulfilment state.
type Order struct {
	ID                string        `json:"id"`
	OrderNumber       string        `json:"order_number"`
	CustomerEmail     string        `json:"customer_email"`
	Status            OrderStatus   `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	Items             []Item        `json:"items"`
	SubtotalCents     int64         `json:"subtotal_cents"`
	DiscountCents     int64         `json:"discount_cents"`
	TaxCents          int64         `json:"tax_cents"`
	ShippingCents     int64         `json:"shipping_cents"`
	TotalCents        int64         `json:"total_cents"`
	CouponCode        string        `json:"coupon_code,omitempty"`
	TrackingNumber    string        `json:"tracking_number,omitempty"`
	ShippingCarrier   string        `json:"shipping_carrier,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SubtotalOf sums the line totals of items. Quantities, prices and the running
// sum are bounded, so the arithmetic cannot wrap.
func SubtotalOf(items []Item) (int64, error) {
	var subtotal int64
	for i, item := range items {
		if err := item.validate(i); err != nil {
			return 0, err
		}
		subtotal += item.LineTotalCents()
		if subtotal > money.MaxMinor {
			return 0, invalid("subtotal must not exceed 9999999999.99")
		}
	}
	return subtotal, nil
}

func (i Item) validate(index int) error {
	if strings.TrimSpace(i.ProductID) == "" {
		return invalid(fmt.Sprintf("items[%d].product_id is required", index))
	}
	if strings.TrimSpace(i.Name) == "" {
		return invalid(fmt.Sprintf("items[%d].name is required", index))
	}
	if i.Quantity < 1 || i.Quantity > MaxQuantity {
		return invalid(fmt.Sprintf("items[%d].quantity must be between 1 and %d", index, MaxQuantity))
	}
	if i.UnitPriceCents < 0 {
		return invalid(fmt.Sprintf("items[%d].unit_price must not be negative", index))
	}
	if i.UnitPriceCents > money.MaxMinor {
		return invalid(fmt.Sprintf("items[%d].unit_price must not exceed 9999999999.99", index))
	}
	return nil
}

// Validate ensures the order adheres to business constraints, including
// total = subtotal - discount + tax + shipping.
func (o Order) Validate() error {
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return invalid("customer_email is required")
	}
	if !strings.Contains(o.CustomerEmail, "@") {
		return invalid("customer_email must be valid")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if !o.PaymentStatus.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, o.PaymentStatus)
	}

	if len(o.Items) == 0 {
		return invalid("at least one item is required")
	}
	subtotal, err := SubtotalOf(o.Items)
	if err != nil {
		return err
	}
	if o.SubtotalCents != subtotal {
		return invalid("subtotal must equal the sum of item line totals")
	}
	if o.DiscountCents < 0 || o.DiscountCents > o.SubtotalCents {
		return invalid("discount must be between 0 and subtotal")
	}
	if o.TaxCents < 0 {
		return invalid("tax must not be negative")
	}
	if o.ShippingCents < 0 {
		return invalid("shipping must not be negative")
	}
	if o.TotalCents != o.SubtotalCents-o.DiscountCents+o.TaxCents+o.ShippingCents {
		return invalid("total must equal subtotal - discount + tax + shipping")
	}

	return nil
}

// StatusUpdate is an administrator's write to the fulfilment fields. Nil
// pointers leave the stored value unchanged.
type StatusUpdate struct {
	Status            OrderStatus
	TrackingNumber    *string
	ShippingCarrier   *string
	EstimatedDelivery *time.Time
	Notes             *string
	UpdatedAt         time.Time
	// AllowedFrom restricts the write to orders currently in one of these
	// statuses. Empty means any status may be replaced.
	AllowedFrom []OrderStatus
}

// Permits reports whether the update may replace current.
func (u StatusUpdate) Permits(current OrderStatus) bool {
	if len(u.AllowedFrom) == 0 {
		return true
	}
	for _, s := range u.AllowedFrom {
		if s == current {
			return true
		}
	}
	return false
}

// Apply writes the update onto o verbatim. No transition table is consulted.
func (o *Order) Apply(u StatusUpdate) {
	o.Status = u.Status
	if u.TrackingNumber != nil {
		o.TrackingNumber = *u.TrackingNumber
	}
	if u.ShippingCarrier != nil {
		o.ShippingCarrier = *u.ShippingCarrier
	}
	if u.EstimatedDelivery != nil {
		eta := u.EstimatedDelivery.UTC()
		o.EstimatedDelivery = &eta
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}
	o.UpdatedAt = u.UpdatedAt
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}
