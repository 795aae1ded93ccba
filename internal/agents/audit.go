package agents

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type auditAgent struct {
	base
}

func (a *auditAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	switch ev.Type {
	case domain.EventSecurityAlert, domain.EventComplianceCheck:
		entry := map[string]any{"auditType": string(ev.Type)}
		if in.Classification != nil {
			entry["riskLevel"] = string(in.Classification.RiskLevel)
		}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "write_audit_log", Result: entry}},
			Workflows: []WorkflowRequest{{Name: "compliance-audit-log", Data: workflowData(ev, entry)}},
			Summary:   map[string]any{"audited": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}

// ShouldEscalate escalates security and compliance events the source has
// flagged for audit.
func (a *auditAgent) ShouldEscalate(ev *domain.Event, _ domain.Verdict) domain.EscalationDecision {
	switch ev.Type {
	case domain.EventSecurityAlert, domain.EventComplianceCheck:
		if ev.DataBool("auditFlag") || ev.DataBool("flagged") {
			return domain.Escalate("audit-flagged "+string(ev.Type), domain.PriorityCritical)
		}
	}
	return domain.NoEscalation()
}
