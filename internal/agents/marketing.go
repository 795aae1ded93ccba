package agents

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

type marketingAgent struct {
	base
}

func (a *marketingAgent) Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error) {
	switch ev.Type {
	case domain.EventMarketingCampaign:
		campaign := map[string]any{"campaignId": ev.DataString("campaignId")}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "launch_campaign", Result: campaign}},
			Workflows: []WorkflowRequest{{Name: "marketing-campaign", Data: workflowData(ev, campaign)}},
			Summary:   campaign,
		}, nil
	case domain.EventCRMUpdate:
		contact := map[string]any{"contactId": ev.DataString("contactId")}
		return &Result{
			Success:   true,
			Actions:   []ActionRecord{{Action: "sync_crm_contact", Result: contact}},
			Workflows: []WorkflowRequest{{Name: "crm-sync", Data: workflowData(ev, contact)}},
			Summary:   map[string]any{"crmSynced": true},
		}, nil
	}
	return a.acknowledge(ev), nil
}
