package agents

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type providerAgent struct {
	base
}

func (a *providerAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	providerID := ev.ProviderID()
	if providerID == "" {
		return a.missing(ev, "providerId"), nil
	}
	ids := map[string]any{"providerId": providerID}

	switch ev.Type {
	case domain.EventProviderRegistered:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "start_onboarding", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "provider-onboarding", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"providerId": providerID, "registered": true},
		}, nil
	case domain.EventProviderVerified:
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "activate_provider", Result: ids}},
			Workflows: []WorkflowRequest{{Name: "provider-verification", Data: workflowData(ev, ids)}},
			Summary:   map[string]any{"providerId": providerID, "verified": true},
		}, nil
	case domain.EventProviderRejected:
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_rejection", Result: map[string]any{
				"providerId": providerID,
				"reason":     ev.DataString("reason"),
			}}},
			Summary: map[string]any{"providerId": providerID, "rejected": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *providerAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type == domain.EventProviderRejected {
		return domain.Escalate("provider verification rejected", domain.PriorityHigh)
	}
	return domain.NoEscalation()
}
