package agents

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type analyticsAgent struct {
	base
}

func (a *analyticsAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	if ev.Type == domain.EventAnalyticsReport {
		report := map[string]any{"reportType": ev.DataString("reportType")}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "generate_report", Result: report}},
			Workflows: []WorkflowRequest{{Name: "analytics-report", Data: workflowData(ev, report)}},
			Summary:   report,
		}, nil
	}
	return a.acknowledge(ev), nil
}
