package classifier

import (
	"strings"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// exactIntents maps event types whose intent cannot be derived from a prefix.
var exactIntents = map[domain.EventType]domain.Intent{
	domain.EventEscrowCreated:     domain.IntentEscrowManagement,
	domain.EventEscrowReleased:    domain.IntentEscrowManagement,
	domain.EventEscrowDispute:     domain.IntentDisputeResolution,
	domain.EventSystemAlert:       domain.IntentOperations,
	domain.EventSecurityAlert:     domain.IntentSecurityAudit,
	domain.EventComplianceCheck:   domain.IntentCompliance,
	domain.EventGPSLocation:       domain.IntentLocationTracking,
	domain.EventPOSTransaction:    domain.IntentPOSIntegration,
	domain.EventCRMUpdate:         domain.IntentCRMSync,
	domain.EventMarketingCampaign: domain.IntentMarketing,
	domain.EventAnalyticsReport:   domain.IntentAnalytics,
}

var prefixIntents = []struct {
	prefix string
	intent domain.Intent
}{
	{"booking_", domain.IntentBookingManagement},
	{"payment_", domain.IntentPaymentProcessing},
	{"provider_", domain.IntentProviderManagement},
	{"support_", domain.IntentCustomerSupport},
}

// FallbackIntent returns the lookup-table intent for an event type.
func FallbackIntent(t domain.EventType) domain.Intent {
	if in, ok := exactIntents[t]; ok {
		return in
	}
	for _, p := range prefixIntents {
		if strings.HasPrefix(string(t), p.prefix) {
			return p.intent
		}
	}
	return domain.IntentOther
}

// Fallback builds the deterministic verdict used whenever the oracle cannot
// produce one.
func Fallback(ev *domain.Event) domain.Verdict {
	return domain.Verdict{
		Intent:     FallbackIntent(ev.Type),
		Confidence: domain.FallbackConfidence,
		Reasoning:  domain.FallbackReasoning,
		RiskLevel:  domain.RiskMedium,
		Fallback:   true,
	}
}
