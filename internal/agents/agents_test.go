package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

func newEvent(t *testing.T, eventType string, data map[string]any) *domain.Event {
	t.Helper()
	ev, err := domain.NewEvent(domain.RawEvent{Type: eventType, Source: "api", Data: data})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return ev
}

func process(t *testing.T, r *Registry, name Name, ev *domain.Event) *Result {
	t.Helper()
	a, err := r.Get(name)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", name, err)
	}
	res, err := a.Process(context.Background(), domain.NewInteraction(ev, domain.InteractionStatusProcessing), ev)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return res
}

func workflowNames(res *Result) []string {
	var names []string
	for _, w := range res.Workflows {
		names = append(names, w.Name)
	}
	return names
}

func TestAgents_Process(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name      string
		agent     Name
		eventType string
		data      map[string]any
		workflows []string
	}{
		{"booking created", BookingAgent, "booking_created", map[string]any{"bookingId": "B1"}, []string{"booking-reminders"}},
		{"booking confirmed", BookingAgent, "booking_confirmed", map[string]any{"bookingId": "B1"}, []string{"booking-reminders"}},
		{"booking updated", BookingAgent, "booking_updated", map[string]any{"bookingId": "B1"}, nil},
		{"booking cancelled", BookingAgent, "booking_cancelled", map[string]any{"bookingId": "B1"}, []string{"booking-cancellation"}},
		{"booking completed", BookingAgent, "booking_completed", map[string]any{"bookingId": "B1"}, []string{"booking-feedback"}},
		{"payment via stripe", PaymentAgent, "payment_received", map[string]any{"paymentId": "P1", "gateway": "Stripe"}, []string{"stripe-payment-webhook"}},
		{"payment via mpesa", PaymentAgent, "payment_received", map[string]any{"paymentId": "P1", "gateway": "mpesa"}, []string{"mpesa-payment-webhook"}},
		{"payment unknown rail", PaymentAgent, "payment_received", map[string]any{"paymentId": "P1", "gateway": "cash"}, nil},
		{"payment failed", PaymentAgent, "payment_failed", map[string]any{"paymentId": "P1"}, []string{"payment-retry"}},
		{"payment refunded", PaymentAgent, "payment_refunded", map[string]any{"paymentId": "P1"}, nil},
		{"escrow created", EscrowAgent, "escrow_created", map[string]any{"escrowId": "E1"}, []string{"escrow-management"}},
		{"escrow released", EscrowAgent, "escrow_released", map[string]any{"escrowId": "E1"}, []string{"escrow-release"}},
		{"escrow dispute", EscrowAgent, "escrow_dispute", map[string]any{"escrowId": "E1"}, nil},
		{"provider registered", ProviderAgent, "provider_registered", map[string]any{"providerId": "PR1"}, []string{"provider-onboarding"}},
		{"provider verified", ProviderAgent, "provider_verified", map[string]any{"providerId": "PR1"}, []string{"provider-verification"}},
		{"provider rejected", ProviderAgent, "provider_rejected", map[string]any{"providerId": "PR1"}, nil},
		{"support request", SupportAgent, "support_request", nil, []string{"support-ticket"}},
		{"support escalation", SupportAgent, "support_escalation", nil, nil},
		{"gps", OperationsAgent, "gps_location", map[string]any{"latitude": -1.28, "longitude": 36.82}, nil},
		{"pos", OperationsAgent, "pos_transaction", map[string]any{"transactionId": "T1"}, []string{"pos-sync"}},
		{"system alert", OperationsAgent, "system_alert", map[string]any{"severity": "low"}, nil},
		{"security alert", AuditAgent, "security_alert", nil, []string{"compliance-audit-log"}},
		{"compliance check", AuditAgent, "compliance_check", nil, []string{"compliance-audit-log"}},
		{"campaign", MarketingAgent, "marketing_campaign", map[string]any{"campaignId": "C1"}, []string{"marketing-campaign"}},
		{"crm", MarketingAgent, "crm_update", map[string]any{"contactId": "K1"}, []string{"crm-sync"}},
		{"report", AnalyticsAgent, "analytics_report", map[string]any{"reportType": "weekly"}, []string{"analytics-report"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := process(t, r, tt.agent, newEvent(t, tt.eventType, tt.data))
			if !res.Success {
				t.Fatalf("Success = false, Error = %q", res.Error)
			}
			if len(res.Actions) == 0 {
				t.Error("no actions recorded")
			}
			got := workflowNames(res)
			if strings.Join(got, ",") != strings.Join(tt.workflows, ",") {
				t.Errorf("workflows = %v, want %v", got, tt.workflows)
			}
			for _, w := range res.Workflows {
				if w.Data["eventType"] != tt.eventType {
					t.Errorf("workflow payload eventType = %v", w.Data["eventType"])
				}
			}
		})
	}
}

func TestAgents_MissingCorrelationID(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		agent     Name
		eventType string
		field     string
	}{
		{BookingAgent, "booking_created", "bookingId"},
		{PaymentAgent, "payment_failed", "paymentId"},
		{EscrowAgent, "escrow_created", "escrowId"},
		{ProviderAgent, "provider_verified", "providerId"},
	}
	for _, tt := range tests {
		t.Run(string(tt.agent), func(t *testing.T) {
			res := process(t, r, tt.agent, newEvent(t, tt.eventType, nil))
			if res.Success {
				t.Fatal("Success = true, want false")
			}
			if !strings.Contains(res.Error, tt.field) {
				t.Errorf("Error = %q, want mention of %s", res.Error, tt.field)
			}
			if len(res.Actions) != 0 || len(res.Workflows) != 0 {
				t.Errorf("result carries actions: %+v", res)
			}
		})
	}
}

func TestAgents_CorrelationIDFromContext(t *testing.T) {
	ev, err := domain.NewEvent(domain.RawEvent{
		Type:    "booking_created",
		Source:  "app",
		Context: &domain.EventContext{BookingID: "B9"},
	})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	res := process(t, NewRegistry(), BookingAgent, ev)
	if !res.Success || res.Summary["bookingId"] != "B9" {
		t.Errorf("Process() = %+v", res)
	}
}

func TestAgents_UnrecognizedSubtypeAcknowledged(t *testing.T) {
	r := NewRegistry()
	for _, name := range Names {
		res := process(t, r, name, newEvent(t, "app_event", map[string]any{
			"bookingId": "B1", "paymentId": "P1", "escrowId": "E1", "providerId": "PR1",
		}))
		if !res.Success || len(res.Actions) != 1 || res.Actions[0].Action != "log_and_acknowledge" {
			t.Errorf("%s: Process() = %+v, want acknowledgement", name, res)
		}
	}
}

func TestAgents_ShouldEscalate(t *testing.T) {
	r := NewRegistry()
	verdict := domain.Verdict{Intent: domain.IntentOther, RiskLevel: domain.RiskLow}

	tests := []struct {
		name         string
		agent        Name
		eventType    string
		data         map[string]any
		wantRequired bool
		wantPriority domain.Priority
	}{
		{"escrow dispute", EscrowAgent, "escrow_dispute", map[string]any{"reason": "no-show"}, true, domain.PriorityHigh},
		{"escrow created", EscrowAgent, "escrow_created", nil, false, ""},
		{"big cancellation", BookingAgent, "booking_cancelled", map[string]any{"amount": 1500.0}, true, domain.PriorityMedium},
		{"small cancellation", BookingAgent, "booking_cancelled", map[string]any{"amount": 999.0}, false, ""},
		{"cancellation at threshold", BookingAgent, "booking_cancelled", map[string]any{"amount": 1000.0}, false, ""},
		{"big payment failure", PaymentAgent, "payment_failed", map[string]any{"amount": 6000.0}, true, domain.PriorityHigh},
		{"string amount", PaymentAgent, "payment_failed", map[string]any{"amount": "7000"}, true, domain.PriorityHigh},
		{"small payment failure", PaymentAgent, "payment_failed", map[string]any{"amount": 100.0}, false, ""},
		{"provider rejected", ProviderAgent, "provider_rejected", nil, true, domain.PriorityHigh},
		{"critical alert", OperationsAgent, "system_alert", map[string]any{"severity": "CRITICAL"}, true, domain.PriorityCritical},
		{"warning alert", OperationsAgent, "system_alert", map[string]any{"severity": "warning"}, false, ""},
		{"flagged security", AuditAgent, "security_alert", map[string]any{"auditFlag": true}, true, domain.PriorityCritical},
		{"flagged compliance", AuditAgent, "compliance_check", map[string]any{"flagged": "true"}, true, domain.PriorityCritical},
		{"unflagged security", AuditAgent, "security_alert", nil, false, ""},
		{"critical support", SupportAgent, "support_request", map[string]any{"priority": "critical"}, true, domain.PriorityCritical},
		{"normal support", SupportAgent, "support_request", map[string]any{"priority": "high"}, false, ""},
		{"marketing default", MarketingAgent, "marketing_campaign", nil, false, ""},
		{"analytics default", AnalyticsAgent, "analytics_report", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Get(tt.agent)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			d := a.ShouldEscalate(newEvent(t, tt.eventType, tt.data), verdict)
			if d.Required != tt.wantRequired || d.Priority != tt.wantPriority {
				t.Errorf("ShouldEscalate() = %+v, want required=%v priority=%s", d, tt.wantRequired, tt.wantPriority)
			}
			if d.Required && d.Reason == "" {
				t.Error("required decision has no reason")
			}
		})
	}
}

func TestAgents_EscrowDisputeReason(t *testing.T) {
	a, _ := NewRegistry().Get(EscrowAgent)
	d := a.ShouldEscalate(newEvent(t, "escrow_dispute", map[string]any{"escrowId": "E1", "reason": "no-show"}), domain.Verdict{})
	if !strings.Contains(d.Reason, "dispute") || !strings.Contains(d.Reason, "no-show") {
		t.Errorf("Reason = %q", d.Reason)
	}
}

func TestRegistry_SetThresholds(t *testing.T) {
	r := NewRegistry(WithThresholds(Thresholds{BookingCancellation: 10, PaymentFailure: 20}))
	a, _ := r.Get(PaymentAgent)
	ev := newEvent(t, "payment_failed", map[string]any{"amount": 50.0})

	if d := a.ShouldEscalate(ev, domain.Verdict{}); !d.Required {
		t.Fatal("ShouldEscalate() not required with threshold 20")
	}

	r.SetThresholds(DefaultThresholds())
	if d := a.ShouldEscalate(ev, domain.Verdict{}); d.Required {
		t.Error("ShouldEscalate() still required after thresholds reset")
	}
	if got := r.Thresholds(); got != DefaultThresholds() {
		t.Errorf("Thresholds() = %+v", got)
	}
}
