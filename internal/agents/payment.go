package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// paymentRails are the gateways that have a dedicated webhook workflow.
var paymentRails = map[string]bool{
	"stripe":      true,
	"paypal":      true,
	"mpesa":       true,
	"flutterwave": true,
}

type paymentAgent struct {
	base
	thresholds *thresholdSource
}

func (a *paymentAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	paymentID := ev.DataString("paymentId")
	if paymentID == "" {
		return a.missing(ev, "paymentId"), nil
	}
	ids := map[string]any{"paymentId": paymentID}
	if id := ev.BookingID(); id != "" {
		ids["bookingId"] = id
	}

	switch ev.Type {
	case domain.EventPaymentReceived:
		res := &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "record_payment", Result: ids}},
			Summary: map[string]any{"paymentId": paymentID, "received": true},
		}
		rail := strings.ToLower(ev.DataString("gateway"))
		if paymentRails[rail] {
			res.Workflows = append(res.Workflows, WorkflowRequest{
				Name: rail + "-payment-webhook",
				Data: workflowData(ev, ids),
			})
			res.Summary["gateway"] = rail
		}
		return res, nil
	case domain.EventPaymentFailed:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "schedule_payment_retry", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "payment-retry", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"paymentId": paymentID, "failed": true},
		}, nil
	case domain.EventPaymentRefunded:
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_refund", Result: ids}},
			Summary: map[string]any{"paymentId": paymentID, "refunded": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *paymentAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type != domain.EventPaymentFailed {
		return domain.NoEscalation()
	}
	limit := a.thresholds.load().PaymentFailure
	if amount, ok := ev.DataFloat("amount"); ok && amount > limit {
		return domain.Escalate(
			fmt.Sprintf("payment failure amount %.2f exceeds threshold %.2f", amount, limit),
			domain.PriorityHigh,
		)
	}
	return domain.NoEscalation()
}
