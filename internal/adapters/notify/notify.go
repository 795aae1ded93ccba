// Package notify delivers escalation notifications to operators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/workflow"
)

// LogNotifier writes escalations to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyEscalation(ctx context.Context, in *domain.Interaction) error {
	n.logger.Warn("interaction escalated",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(in.Event.Type)),
		slog.String("status", string(in.Status)),
		slog.String("reason", in.Escalation.Reason),
		slog.String("priority", string(in.Escalation.Priority)),
	)
	return nil
}

// Trigger starts a workflow by name. Implemented by *workflow.Executor.
type Trigger interface {
	Trigger(ctx context.Context, nameOrID string, payload map[string]any) workflow.TriggerResult
}

// WorkflowNotifier hands escalations to an operator-notification workflow
// and also logs them.
type WorkflowNotifier struct {
	log      *LogNotifier
	trigger  Trigger
	workflow string
}

var _ ports.Notifier = (*WorkflowNotifier)(nil)

// NewWorkflowNotifier creates a notifier that triggers workflowName.
func NewWorkflowNotifier(trigger Trigger, workflowName string, logger *slog.Logger) *WorkflowNotifier {
	return &WorkflowNotifier{
		log:      NewLogNotifier(logger),
		trigger:  trigger,
		workflow: workflowName,
	}
}

func (n *WorkflowNotifier) NotifyEscalation(ctx context.Context, in *domain.Interaction) error {
	_ = n.log.NotifyEscalation(ctx, in)

	payload := map[string]any{
		"interactionId": in.ID,
		"eventType":     string(in.Event.Type),
		"source":        string(in.Event.Source),
		"status":        string(in.Status),
		"reason":        in.Escalation.Reason,
		"priority":      string(in.Escalation.Priority),
	}
	if in.Classification != nil {
		payload["intent"] = string(in.Classification.Intent)
		payload["riskLevel"] = string(in.Classification.RiskLevel)
	}

	res := n.trigger.Trigger(ctx, n.workflow, payload)
	if !res.Success {
		return fmt.Errorf("notify escalation %s: %w", in.ID, errors.New(res.Error))
	}
	return nil
}
