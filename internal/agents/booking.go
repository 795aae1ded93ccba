package agents

import (
	"context"
	"fmt"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type bookingAgent struct {
	base
	thresholds *thresholdSource
}

func (a *bookingAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	bookingID := ev.BookingID()
	if bookingID == "" {
		return a.missing(ev, "bookingId"), nil
	}
	ids := map[string]any{"bookingId": bookingID}

	switch ev.Type {
	case domain.EventBookingCreated, domain.EventBookingConfirmed:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "schedule_reminders", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "booking-reminders", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"bookingId": bookingID, "status": string(ev.Type)},
		}, nil
	case domain.EventBookingUpdated:
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_booking_update", Result: ids}},
			Summary: map[string]any{"bookingId": bookingID, "updated": true},
		}, nil
	case domain.EventBookingCancelled:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "process_cancellation", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "booking-cancellation", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"bookingId": bookingID, "cancelled": true},
		}, nil
	case domain.EventBookingCompleted:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "request_feedback", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "booking-feedback", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"bookingId": bookingID, "completed": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *bookingAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type != domain.EventBookingCancelled {
		return domain.NoEscalation()
	}
	limit := a.thresholds.load().BookingCancellation
	if amount, ok := ev.DataFloat("amount"); ok && amount > limit {
		return domain.Escalate(
			fmt.Sprintf("booking cancellation amount %.2f exceeds threshold %.2f", amount, limit),
			domain.PriorityMedium,
		)
	}
	return domain.NoEscalation()
}
