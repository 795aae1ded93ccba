// Package agents holds the nine sub-agents that perform type-specific
// handling of classified events, together with the registry and the
// intent router that selects one of them.
package agents

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// Name identifies a sub-agent. The set is closed.
type Name string

const (
	ProviderAgent   Name = "provider_agent"
	BookingAgent    Name = "booking_agent"
	PaymentAgent    Name = "payment_agent"
	EscrowAgent     Name = "escrow_agent"
	SupportAgent    Name = "support_agent"
	OperationsAgent Name = "operations_agent"
	AuditAgent      Name = "audit_agent"
	MarketingAgent  Name = "marketing_agent"
	AnalyticsAgent  Name = "analytics_agent"
)

// Names lists every sub-agent.
var Names = []Name{
	ProviderAgent,
	BookingAgent,
	PaymentAgent,
	EscrowAgent,
	SupportAgent,
	OperationsAgent,
	AuditAgent,
	MarketingAgent,
	AnalyticsAgent,
}

// ActionRecord is one thing a sub-agent did while processing an event.
type ActionRecord struct {
	Action string `json:"action"`
	Result any    `json:"result,omitempty"`
}

// WorkflowRequest asks the orchestrator to trigger an external workflow
// after Process returns.
type WorkflowRequest struct {
	Name       string         `json:"name"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Result is the outcome of a single Process call.
type Result struct {
	Success   bool              `json:"success"`
	Actions   []ActionRecord    `json:"actions,omitempty"`
	Workflows []WorkflowRequest `json:"workflows,omitempty"`
	Summary   map[string]any    `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Agent is the contract every sub-agent implements.
type Agent interface {
	Name() Name

	// Process performs type-specific handling. It is called at most once per
	// event. A returned error is a processing failure; a missing correlation
	// id is reported through Result.Success instead.
	Process(ctx context.Context, in *domain.Interaction, ev *domain.Event) (*Result, error)

	// ShouldEscalate is a side-channel query made before Process.
	ShouldEscalate(ev *domain.Event, verdict domain.Verdict) domain.EscalationDecision
}

// Thresholds are the monetary limits above which failures escalate.
type Thresholds struct {
	BookingCancellation float64
	PaymentFailure      float64
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{BookingCancellation: 1000, PaymentFailure: 5000}
}

// thresholdSource is shared by the agents so limits can be swapped at runtime.
type thresholdSource struct {
	v atomic.Pointer[Thresholds]
}

func (s *thresholdSource) load() Thresholds {
	if t := s.v.Load(); t != nil {
		return *t
	}
	return DefaultThresholds()
}

func (s *thresholdSource) store(t Thresholds) {
	s.v.Store(&t)
}

// base provides the default escalation answer and shared result helpers.
type base struct {
	name   Name
	logger *slog.Logger
}

func (b base) Name() Name { return b.name }

func (b base) ShouldEscalate(*domain.Event, domain.Verdict) domain.EscalationDecision {
	return domain.NoEscalation()
}

// missing reports a required correlation id absent from the event.
func (b base) missing(ev *domain.Event, field string) *Result {
	b.logger.Warn("event missing correlation id",
		slog.String("agent", string(b.name)),
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
		slog.String("field", field),
	)
	return &Result{Success: false, Error: field + " is required for " + string(ev.Type)}
}

// acknowledge is the generic result for sub-types an agent has no specific
// handling for.
func (b base) acknowledge(ev *domain.Event) *Result {
	b.logger.Info("event acknowledged",
		slog.String("agent", string(b.name)),
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
	)
	return &Result{
		Success: true,
		Actions: []ActionRecord{{Action: "log_and_acknowledge", Result: map[string]any{"eventType": string(ev.Type)}}},
		Summary: map[string]any{"acknowledged": true},
	}
}

// workflowData is the payload sent with every workflow request.
func workflowData(ev *domain.Event, extra map[string]any) map[string]any {
	data := map[string]any{
		"eventId":   ev.ID,
		"eventType": string(ev.Type),
		"source":    string(ev.Source),
		"data":      ev.Data,
	}
	if id := ev.UserID(); id != "" {
		data["userId"] = id
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
