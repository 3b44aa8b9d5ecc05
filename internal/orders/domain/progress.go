package domain

const (
	cancelledMessage       = "This order has been cancelled. If you were charged, the refund is issued within 5-7 business days."
	returnedMessage        = "This order has been returned. The refund is issued within 5-7 business days of the return being received."
	returnRequestedMessage = "A return has been requested for this order and is awaiting review."
)

// progressSteps is the ordinal happy path rendered as a progress bar.
var progressSteps = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

// Step is one entry of the progress bar.
type Step struct {
	Status    OrderStatus `json:"status"`
	Label     string      `json:"label"`
	Completed bool        `json:"completed"`
	Current   bool        `json:"current"`
}

// Progress is the display state derived from an order status.
type Progress struct {
	Status              OrderStatus `json:"status"`
	Label               string      `json:"label"`
	StepIndex           int         `json:"step_index"`
	IsTerminalCancelled bool        `json:"is_terminal_cancelled"`
	IsTerminalReturned  bool        `json:"is_terminal_returned"`
	IsReturnRequested   bool        `json:"is_return_requested"`
	Steps               []Step      `json:"steps,omitempty"`
	Message             string      `json:"message,omitempty"`
}

// StepIndex returns the position of s on the happy path, or -1 for side states.
func StepIndex(s OrderStatus) int {
	for i, step := range progressSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// ProgressFor derives display data for a status. It is display only and never
// consulted when persisting a status.
func ProgressFor(s OrderStatus) Progress {
	p := Progress{
		Status:    s,
		Label:     s.Label(),
		StepIndex: StepIndex(s),
	}

	switch s {
	case StatusCancelled:
		p.IsTerminalCancelled = true
		p.Message = cancelledMessage
		return p
	case StatusReturned:
		p.IsTerminalReturned = true
		p.Message = returnedMessage
		return p
	case StatusReturnRequested:
		// A return can only be requested after delivery.
		p.IsReturnRequested = true
		p.Message = returnRequestedMessage
		p.Steps = buildSteps(len(progressSteps), -1)
		return p
	}

	p.Steps = buildSteps(p.StepIndex+1, p.StepIndex)
	return p
}

func buildSteps(completed, current int) []Step {
	steps := make([]Step, len(progressSteps))
	for i, s := range progressSteps {
		steps[i] = Step{
			Status:    s,
			Label:     s.Label(),
			Completed: i < completed,
			Current:   i == current,
		}
	}
	return steps
}
