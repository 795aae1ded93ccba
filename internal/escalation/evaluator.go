// Package escalation decides whether an event must be handed to a human
// operator instead of being processed automatically.
package escalation

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
)

const (
	ReasonCriticalRisk  = "critical risk level"
	ReasonHumanRequired = "AI recommended actions require human intervention"
)

// Policy is the side-channel escalation query a sub-agent answers.
type Policy interface {
	ShouldEscalate(ev *domain.Event, verdict domain.Verdict) domain.EscalationDecision
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules installs operator-defined rules.
func WithRules(rs *RuleSet) Option {
	return func(e *Evaluator) {
		e.rules.Store(rs)
	}
}

// Evaluator applies the escalation rules in a fixed order:
//
//  1. critical risk level
//  2. a recommended action requiring a human
//  3. each sub-agent policy, in the order given
//  4. operator-defined rules
//
// The first rule that fires wins.
type Evaluator struct {
	logger *slog.Logger
	rules  atomic.Pointer[RuleSet]
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetRules replaces the operator-defined rules. A nil set disables them.
func (e *Evaluator) SetRules(rs *RuleSet) {
	e.rules.Store(rs)
}

// Evaluate returns the escalation decision for ev. It has no side effects.
func (e *Evaluator) Evaluate(ctx context.Context, ev *domain.Event, verdict domain.Verdict, policies ...Policy) domain.EscalationDecision {
	_, span := telemetry.Tracer().Start(ctx, "escalation.Evaluate")
	defer span.End()

	d := e.evaluate(ev, verdict, policies)
	span.SetAttributes(
		attribute.Bool("escalation.required", d.Required),
		attribute.String("escalation.priority", string(d.Priority)),
	)
	return d
}

func (e *Evaluator) evaluate(ev *domain.Event, verdict domain.Verdict, policies []Policy) domain.EscalationDecision {
	if verdict.RiskLevel == domain.RiskCritical {
		return domain.Escalate(ReasonCriticalRisk, domain.PriorityCritical)
	}
	if verdict.RequiresHuman() {
		return domain.Escalate(ReasonHumanRequired, domain.PriorityHigh)
	}
	for _, p := range policies {
		if p == nil {
			continue
		}
		if d := p.ShouldEscalate(ev, verdict); d.Required {
			if d.Priority == "" {
				d.Priority = domain.PriorityMedium
			}
			return d
		}
	}
	if rs := e.rules.Load(); rs != nil {
		if d, ok := rs.Match(ev, verdict, e.logger); ok {
			return d
		}
	}
	return domain.NoEscalation()
}
