package orchestrator

import (
	"time"

	"github.com/tjfontaine/automation-orchestrator/internal/agents"
	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// ProcessingResult is what a synchronous caller receives once the pipeline
// has reached a terminal status.
type ProcessingResult struct {
	InteractionID  string                     `json:"interaction_id"`
	EventType      domain.EventType           `json:"event_type"`
	Status         domain.InteractionStatus   `json:"status"`
	Classification *domain.Verdict            `json:"classification,omitempty"`
	Escalation     *domain.EscalationDecision `json:"escalation,omitempty"`
	SubAgent       string                     `json:"sub_agent,omitempty"`
	Actions        []agents.ActionRecord      `json:"actions,omitempty"`
	Workflows      []domain.WorkflowRun       `json:"workflows,omitempty"`
	Summary        map[string]any             `json:"summary,omitempty"`
	Error          string                     `json:"error,omitempty"`
	ProcessingTime time.Duration              `json:"processing_time_ns"`
}

func newResult(in *domain.Interaction) *ProcessingResult {
	r := &ProcessingResult{
		InteractionID:  in.ID,
		EventType:      in.Event.Type,
		Status:         in.Status,
		Classification: in.Classification,
		SubAgent:       in.AssignedSubAgent,
		Workflows:      in.Workflows,
		ProcessingTime: in.ProcessingTime,
	}
	if in.Escalation.Escalated {
		r.Escalation = &domain.EscalationDecision{
			Required: true,
			Reason:   in.Escalation.Reason,
			Priority: in.Escalation.Priority,
		}
	}
	if in.Error != nil {
		r.Error = in.Error.Message
	}
	return r
}
