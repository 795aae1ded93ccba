package domain

import "strings"

// Intent is the closed-vocabulary category assigned to an event.
type Intent string

const (
	IntentProviderManagement Intent = "provider_management"
	IntentBookingManagement  Intent = "booking_management"
	IntentPaymentProcessing  Intent = "payment_processing"
	IntentEscrowManagement   Intent = "escrow_management"
	IntentDisputeResolution  Intent = "dispute_resolution"
	IntentCustomerSupport    Intent = "customer_support"
	IntentOperations         Intent = "operations"
	IntentSecurityAudit      Intent = "security_audit"
	IntentCompliance         Intent = "compliance"
	IntentMarketing          Intent = "marketing"
	IntentAnalytics          Intent = "analytics"
	IntentLocationTracking   Intent = "location_tracking"
	IntentPOSIntegration     Intent = "pos_integration"
	IntentCRMSync            Intent = "crm_sync"
	IntentOther              Intent = "other"
)

// Intents lists the full intent vocabulary in a stable order.
var Intents = []Intent{
	IntentProviderManagement,
	IntentBookingManagement,
	IntentPaymentProcessing,
	IntentEscrowManagement,
	IntentDisputeResolution,
	IntentCustomerSupport,
	IntentOperations,
	IntentSecurityAudit,
	IntentCompliance,
	IntentMarketing,
	IntentAnalytics,
	IntentLocationTracking,
	IntentPOSIntegration,
	IntentCRMSync,
	IntentOther,
}

// ParseIntent maps free text onto the vocabulary. Unknown values become IntentOther.
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, in := range Intents {
		if string(in) == s {
			return in
		}
	}
	return IntentOther
}

// RiskLevel grades how dangerous automated handling of an event is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel maps free text onto a RiskLevel. Unknown values become RiskMedium.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	case RiskCritical:
		return RiskCritical
	default:
		return RiskMedium
	}
}

// FallbackConfidence is the confidence assigned to lookup-table verdicts.
const FallbackConfidence = 0.6

// FallbackReasoning is the reasoning recorded on lookup-table verdicts.
const FallbackReasoning = "fallback classification"

// RecommendedAction is a follow-up the classifier suggests for an event.
type RecommendedAction struct {
	Action        string   `json:"action"`
	Priority      Priority `json:"priority,omitempty"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	RequiresHuman bool     `json:"requires_human"`
}

// Verdict is the immutable classification produced for one event.
type Verdict struct {
	Intent             Intent              `json:"intent"`
	Confidence         float64             `json:"confidence"`
	Reasoning          string              `json:"reasoning"`
	RecommendedActions []RecommendedAction `json:"recommended_actions,omitempty"`
	RiskLevel          RiskLevel           `json:"risk_level"`
	Fallback           bool                `json:"fallback,omitempty"`
}

// RequiresHuman reports whether any recommended action needs an operator.
func (v Verdict) RequiresHuman() bool {
	for _, a := range v.RecommendedActions {
		if a.RequiresHuman {
			return true
		}
	}
	return false
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
