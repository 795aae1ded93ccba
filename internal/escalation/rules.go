package escalation

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// Rule is an operator-defined escalation rule. Expression is a CEL boolean
// expression over the variables `event` and `verdict`, for example
//
//	event.type == "payment_failed" && event.data.gateway == "mpesa"
//	verdict.confidence < 0.3
type Rule struct {
	Name       string
	Expression string
	Reason     string
	Priority   domain.Priority
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// RuleSet is an ordered, compiled list of rules.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles rules. Any compile error rejects the whole set.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.DynType),
		cel.Variable("verdict", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	rs := &RuleSet{}
	for i, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %d (%s): compile: %w", i, r.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("rule %d (%s): expression must return bool, got %s", i, r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): program: %w", i, r.Name, err)
		}
		if r.Reason == "" {
			r.Reason = "escalation rule " + r.Name
		}
		if r.Priority == "" {
			r.Priority = domain.PriorityMedium
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, prg: prg})
	}
	return rs, nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Match returns the decision of the first rule that evaluates to true.
// Rules that fail at evaluation time are logged and skipped.
func (rs *RuleSet) Match(ev *domain.Event, verdict domain.Verdict, logger *slog.Logger) (domain.EscalationDecision, bool) {
	if len(rs.rules) == 0 {
		return domain.EscalationDecision{}, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	input := map[string]any{
		"event":   eventVars(ev),
		"verdict": verdictVars(verdict),
	}
	for _, r := range rs.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			logger.Warn("escalation rule failed",
				slog.String("rule", r.Name),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if val, ok := out.Value().(bool); ok && val {
			return domain.Escalate(r.Reason, r.Priority), true
		}
	}
	return domain.EscalationDecision{}, false
}

func eventVars(ev *domain.Event) map[string]any {
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	metadata := ev.Context.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":     ev.ID,
		"type":   string(ev.Type),
		"source": string(ev.Source),
		"data":   data,
		"context": map[string]any{
			"userId":     ev.Context.UserID,
			"bookingId":  ev.Context.BookingID,
			"providerId": ev.Context.ProviderID,
			"escrowId":   ev.Context.EscrowID,
			"metadata":   metadata,
		},
	}
}

func verdictVars(v domain.Verdict) map[string]any {
	return map[string]any{
		"intent":        string(v.Intent),
		"confidence":    v.Confidence,
		"reasoning":     v.Reasoning,
		"riskLevel":     string(v.RiskLevel),
		"requiresHuman": v.RequiresHuman(),
		"fallback":      v.Fallback,
	}
}
