package domain

import "strings"

// Priority ranks how urgently a human must look at an escalation.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps free text onto a Priority. Unknown values become PriorityMedium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// EscalationDecision says whether an event must be handed to a human.
type EscalationDecision struct {
	Required bool     `json:"required"`
	Reason   string   `json:"reason,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// NoEscalation is the "not required" decision.
func NoEscalation() EscalationDecision {
	return EscalationDecision{}
}

// Escalate builds a required decision.
func Escalate(reason string, priority Priority) EscalationDecision {
	return EscalationDecision{Required: true, Reason: reason, Priority: priority}
}
