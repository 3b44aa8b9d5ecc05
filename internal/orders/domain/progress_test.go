package domain_test

import (
	"testing"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

func TestStepIndex(t *testing.T) {
	tests := []struct {
		status domain.OrderStatus
		want   int
	}{
		{domain.StatusPending, 0},
		{domain.StatusConfirmed, 1},
		{domain.StatusProcessing, 2},
		{domain.StatusShipped, 3},
		{domain.StatusDelivered, 4},
		{domain.StatusCancelled, -1},
		{domain.StatusReturned, -1},
		{domain.StatusReturnRequested, -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := domain.StepIndex(tt.status); got != tt.want {
				t.Errorf("StepIndex(%s) = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestProgressFor(t *testing.T) {
	t.Run("marks steps up to the current one as completed", func(t *testing.T) {
		p := domain.ProgressFor(domain.StatusProcessing)

		if p.StepIndex != 2 || len(p.Steps) != 5 {
			t.Fatalf("unexpected progress: %+v", p)
		}
		for i, step := range p.Steps {
			if step.Completed != (i <= 2) {
				t.Errorf("step %d completed = %v", i, step.Completed)
			}
			if step.Current != (i == 2) {
				t.Errorf("step %d current = %v", i, step.Current)
			}
		}
		if p.IsTerminalCancelled || p.IsTerminalReturned || p.Message != "" {
			t.Errorf("expected no terminal flags, got %+v", p)
		}
	})

	t.Run("suppresses steps for cancelled orders", func(t *testing.T) {
		p := domain.ProgressFor(domain.StatusCancelled)

		if !p.IsTerminalCancelled || p.IsTerminalReturned {
			t.Errorf("unexpected flags: %+v", p)
		}
		if p.StepIndex != -1 || p.Steps != nil {
			t.Errorf("expected no steps, got %+v", p)
		}
		if p.Message == "" {
			t.Error("expected refund message")
		}
	})

	t.Run("suppresses steps for returned orders", func(t *testing.T) {
		p := domain.ProgressFor(domain.StatusReturned)

		if !p.IsTerminalReturned || p.IsTerminalCancelled || p.Steps != nil || p.Message == "" {
			t.Errorf("unexpected progress: %+v", p)
		}
	})

	t.Run("shows the delivered path for return requests", func(t *testing.T) {
		p := domain.ProgressFor(domain.StatusReturnRequested)

		if !p.IsReturnRequested || p.StepIndex != -1 {
			t.Errorf("unexpected flags: %+v", p)
		}
		for _, step := range p.Steps {
			if !step.Completed || step.Current {
				t.Errorf("expected completed non-current step, got %+v", step)
			}
		}
	})

	t.Run("jumps from pending to delivered", func(t *testing.T) {
		before := domain.ProgressFor(domain.StatusPending)
		after := domain.ProgressFor(domain.StatusDelivered)

		if before.StepIndex != 0 || after.StepIndex != 4 {
			t.Errorf("expected 0 -> 4, got %d -> %d", before.StepIndex, after.StepIndex)
		}
	})
}
