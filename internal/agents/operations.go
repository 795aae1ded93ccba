package agents

import (
	"context"
	"strings"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type operationsAgent struct {
	base
}

func (a *operationsAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	switch ev.Type {
	case domain.EventGPSLocation:
		loc := map[string]any{
			"latitude":  ev.Data["latitude"],
			"longitude": ev.Data["longitude"],
		}
		if id := ev.ProviderID(); id != "" {
			loc["providerId"] = id
		}
		if id := ev.BookingID(); id != "" {
			loc["bookingId"] = id
		}
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "record_location", Result: loc}},
			Summary: map[string]any{"locationRecorded": true},
		}, nil
	case domain.EventPOSTransaction:
		tx := map[string]any{"transactionId": ev.DataString("transactionId")}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "sync_pos_transaction", Result: tx}},
			Workflows: []WorkflowRequest{{Name: "pos-sync", Data: workflowData(ev, tx)}},
			Summary:   map[string]any{"posSynced": true},
		}, nil
	case domain.EventSystemAlert:
		return &Result{
			Success: true,
			Actions: []ActionRecord{{Action: "log_system_alert", Result: map[string]any{
				"severity": ev.DataString("severity"),
				"message":  ev.DataString("message"),
			}}},
			Summary: map[string]any{"alertLogged": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

func (a *operationsAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	if ev.Type == domain.EventSystemAlert && strings.EqualFold(ev.DataString("severity"), "critical") {
		return domain.Escalate("critical system alert", domain.PriorityCritical)
	}
	return domain.NoEscalation()
}
