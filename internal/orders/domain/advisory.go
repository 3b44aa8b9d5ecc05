package domain

// Advisory is a non-blocking warning about a combination of order and
// payment state that an operator may want to reconcile.
type Advisory struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	AdvisoryRefundNotRecorded = "refund_not_recorded"
	AdvisoryDeliveredUnpaid   = "delivered_unpaid"
	AdvisoryMissingTracking   = "missing_tracking"
	AdvisoryRefundedActive    = "refunded_active_order"
)

// Advisories inspects o and reports inconsistencies between its two status axes.
func Advisories(o Order) []Advisory {
	var out []Advisory

	if (o.Status == StatusCancelled || o.Status == StatusReturned) && o.PaymentStatus == PaymentCompleted {
		out = append(out, Advisory{
			Code:    AdvisoryRefundNotRecorded,
			Message: "order is " + string(o.Status) + " but payment is still completed; no refund is recorded",
		})
	}

	if o.Status == StatusDelivered && (o.PaymentStatus == PaymentPending || o.PaymentStatus == PaymentFailed) {
		out = append(out, Advisory{
			Code:    AdvisoryDeliveredUnpaid,
			Message: "order is delivered but payment is " + string(o.PaymentStatus),
		})
	}

	if o.Status == StatusShipped && o.TrackingNumber == "" {
		out = append(out, Advisory{
			Code:    AdvisoryMissingTracking,
			Message: "order is shipped without a tracking number",
		})
	}

	if o.PaymentStatus == PaymentRefunded && StepIndex(o.Status) >= 0 {
		out = append(out, Advisory{
			Code:    AdvisoryRefundedActive,
			Message: "payment is refunded but order is still " + string(o.Status),
		})
	}

	return out
}
