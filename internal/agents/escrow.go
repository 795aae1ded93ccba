package agents

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type escrowAgent struct {
	base
}

func (a *escrowAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	escrowID := ev.EscrowID()
	if escrowID == "" {
		return a.missing(ev, "escrowId"), nil
	}
	ids := map[string]any{"escrowId": escrowID}

	switch ev.Type {
	case domain.EventEscrowCreated:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "open_escrow", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "escrow-management", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"escrowId": escrowID, "created": true},
		}, nil
	case domain.EventEscrowReleased:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "release_funds", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "escrow-release", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"escrowId": escrowID, "released": true},
		}, nil
	case domain.EventEscrowDispute:
		// Disputes are escalated before Process is reached.
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_dispute", Result: map[string]any{
				"escrowId": escrowID,
				"reason":   ev.DataString("reason"),
			}}},
			Summary: map[string]any{"escrowId": escrowID, "dispute": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *escrowAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type == domain.EventEscrowDispute {
		reason := "escrow dispute requires human review"
		if r := ev.DataString("reason"); r != "" {
			reason += ": " + r
		}
		return domain.Escalate(reason, domain.PriorityHigh)
	}
	return domain.NoEscalation()
}
