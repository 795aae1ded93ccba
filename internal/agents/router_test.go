package agents

import (
	"errors"
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		intent domain.Intent
		want   Name
	}{
		{domain.IntentProviderManagement, ProviderAgent},
		{domain.IntentBookingManagement, BookingAgent},
		{domain.IntentPaymentProcessing, PaymentAgent},
		{domain.IntentEscrowManagement, EscrowAgent},
		{domain.IntentDisputeResolution, EscrowAgent},
		{domain.IntentCustomerSupport, SupportAgent},
		{domain.IntentOperations, OperationsAgent},
		{domain.IntentLocationTracking, OperationsAgent},
		{domain.IntentPOSIntegration, OperationsAgent},
		{domain.IntentSecurityAudit, AuditAgent},
		{domain.IntentCompliance, AuditAgent},
		{domain.IntentMarketing, MarketingAgent},
		{domain.IntentCRMSync, MarketingAgent},
		{domain.IntentAnalytics, AnalyticsAgent},
		{domain.IntentOther, OperationsAgent},
		{domain.Intent("not_an_intent"), OperationsAgent},
	}
	for _, tt := range tests {
		if got := Route(tt.intent); got != tt.want {
			t.Errorf("Route(%s) = %s, want %s", tt.intent, got, tt.want)
		}
	}
}

func TestRoute_CoversVocabulary(t *testing.T) {
	for _, in := range domain.Intents {
		if _, ok := intentRoutes[in]; !ok {
			t.Errorf("intent %s has no route", in)
		}
	}
}

func TestRegistry_AllAgentsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, n := range Names {
		a, err := r.Get(n)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", n, err)
		}
		if a.Name() != n {
			t.Errorf("Get(%s).Name() = %s", n, a.Name())
		}
	}
}

func TestRouter_Select_UnknownSubAgent(t *testing.T) {
	router := NewRouter(NewRegistry(WithoutAgent(BookingAgent)))

	_, err := router.Select(domain.IntentBookingManagement)
	var unknown *domain.UnknownSubAgentError
	if !errors.As(err, &unknown) {
		t.Fatalf("Select() error = %v, want UnknownSubAgentError", err)
	}
	if unknown.Name != string(BookingAgent) {
		t.Errorf("Name = %s", unknown.Name)
	}

	if a, err := router.Select(domain.IntentAnalytics); err != nil || a.Name() != AnalyticsAgent {
		t.Errorf("Select(analytics) = %v, %v", a, err)
	}
}
