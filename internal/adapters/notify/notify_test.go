package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/workflow"
)

func escalatedInteraction(t *testing.T) *domain.Interaction {
	t.Helper()
	ev, err := domain.NewEvent(domain.RawEvent{Type: "escrow_dispute", Source: "api", Data: map[string]any{"escrowId": "E1"}})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	in := domain.NewInteraction(ev, domain.InteractionStatusProcessing)
	in.Classification = &domain.Verdict{Intent: domain.IntentDisputeResolution, RiskLevel: domain.RiskHigh}
	in.MarkEscalated("escrow dispute requires human review", domain.PriorityHigh)
	if err := in.Transition(domain.InteractionStatusEscalated); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	return in
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := n.NotifyEscalation(context.Background(), escalatedInteraction(t)); err != nil {
		t.Fatalf("NotifyEscalation() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"priority":"high"`) || !strings.Contains(out, "escrow dispute") {
		t.Errorf("log output = %s", out)
	}
}

type fakeTrigger struct {
	name    string
	payload map[string]any
	result  workflow.TriggerResult
}

func (f *fakeTrigger) Trigger(_ context.Context, name string, payload map[string]any) workflow.TriggerResult {
	f.name = name
	f.payload = payload
	return f.result
}

func TestWorkflowNotifier(t *testing.T) {
	trig := &fakeTrigger{result: workflow.TriggerResult{Success: true, ExecutionID: "n1"}}
	n := NewWorkflowNotifier(trig, "escalation-alert", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	in := escalatedInteraction(t)
	if err := n.NotifyEscalation(context.Background(), in); err != nil {
		t.Fatalf("NotifyEscalation() error = %v", err)
	}
	if trig.name != "escalation-alert" {
		t.Errorf("workflow = %s", trig.name)
	}
	if trig.payload["interactionId"] != in.ID || trig.payload["intent"] != "dispute_resolution" || trig.payload["priority"] != "high" {
		t.Errorf("payload = %v", trig.payload)
	}
}

func TestWorkflowNotifier_Failure(t *testing.T) {
	trig := &fakeTrigger{result: workflow.TriggerResult{Error: domain.ErrWorkflowUnavailable.Error()}}
	n := NewWorkflowNotifier(trig, "escalation-alert", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	err := n.NotifyEscalation(context.Background(), escalatedInteraction(t))
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("NotifyEscalation() error = %v", err)
	}
}
