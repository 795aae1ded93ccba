package agents

import "github.com/tjfontaine/automation-orchestrator/internal/core/domain"

// intentRoutes maps every intent to the sub-agent responsible for it.
var intentRoutes = map[domain.Intent]Name{
	domain.IntentProviderManagement: ProviderAgent,
	domain.IntentBookingManagement:  BookingAgent,
	domain.IntentPaymentProcessing:  PaymentAgent,
	domain.IntentEscrowManagement:   EscrowAgent,
	domain.IntentDisputeResolution:  EscrowAgent,
	domain.IntentCustomerSupport:    SupportAgent,
	domain.IntentOperations:         OperationsAgent,
	domain.IntentLocationTracking:   OperationsAgent,
	domain.IntentPOSIntegration:     OperationsAgent,
	domain.IntentSecurityAudit:      AuditAgent,
	domain.IntentCompliance:         AuditAgent,
	domain.IntentMarketing:          MarketingAgent,
	domain.IntentCRMSync:            MarketingAgent,
	domain.IntentAnalytics:          AnalyticsAgent,
	domain.IntentOther:              OperationsAgent,
}

// Route returns the sub-agent name for an intent. Unmapped intents go to
// the operations agent.
func Route(intent domain.Intent) Name {
	if n, ok := intentRoutes[intent]; ok {
		return n
	}
	return OperationsAgent
}

// Router selects handlers from a registry.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Select returns the handler for intent, or *domain.UnknownSubAgentError
// when the mapped handler is not registered.
func (r *Router) Select(intent domain.Intent) (Agent, error) {
	return r.registry.Get(Route(intent))
}

// Registry returns the underlying registry.
func (r *Router) Registry() *Registry {
	return r.registry
}
