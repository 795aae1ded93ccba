package agents

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type supportAgent struct {
	base
}

func (a *supportAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	switch ev.Type {
	case domain.EventSupportRequest:
		ticketID := ev.DataString("ticketId")
		if ticketID == "" {
			ticketID = "TKT-" + strings.ToUpper(uuid.NewString()[:8])
		}
		ids := map[string]any{"ticketId": ticketID}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "create_ticket", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "support-ticket", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"ticketId": ticketID},
		}, nil
	case domain.EventSupportEscalation:
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_support_escalation", Result: map[string]any{
				"ticketId": ev.DataString("ticketId"),
			}}},
			Summary: map[string]any{"escalationLogged": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *supportAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type == domain.EventSupportRequest && strings.EqualFold(ev.DataString("priority"), "critical") {
		return domain.Escalate("critical priority support request", domain.PriorityCritical)
	}
	return domain.NoEscalation()
}
