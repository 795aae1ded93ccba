package classifier

import (
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantIntent domain.Intent
		wantRisk   domain.RiskLevel
		wantConf   float64
		wantErr    bool
	}{
		{
			name:       "plain object",
			content:    `{"intent":"escrow_management","confidence":0.8,"riskLevel":"low"}`,
			wantIntent: domain.IntentEscrowManagement,
			wantRisk:   domain.RiskLow,
			wantConf:   0.8,
		},
		{
			name:       "code fence",
			content:    "```json\n{\"intent\":\"compliance\",\"confidence\":0.7,\"riskLevel\":\"high\"}\n```",
			wantIntent: domain.IntentCompliance,
			wantRisk:   domain.RiskHigh,
			wantConf:   0.7,
		},
		{
			name:       "surrounding prose",
			content:    "Here you go: {\"intent\":\"marketing\",\"confidence\":0.5,\"riskLevel\":\"low\"} Thanks!",
			wantIntent: domain.IntentMarketing,
			wantRisk:   domain.RiskLow,
			wantConf:   0.5,
		},
		{
			name:       "trailing comma repaired",
			content:    `{"intent":"analytics","confidence":0.9,"riskLevel":"low",}`,
			wantIntent: domain.IntentAnalytics,
			wantRisk:   domain.RiskLow,
			wantConf:   0.9,
		},
		{
			name:       "unterminated object repaired",
			content:    `{"intent":"crm_sync","confidence":0.75,"riskLevel":"medium"`,
			wantIntent: domain.IntentCRMSync,
			wantRisk:   domain.RiskMedium,
			wantConf:   0.75,
		},
		{
			name:       "unknown values normalized and confidence clamped",
			content:    `{"intent":"teleportation","confidence":1.7,"riskLevel":"apocalyptic"}`,
			wantIntent: domain.IntentOther,
			wantRisk:   domain.RiskMedium,
			wantConf:   1,
		},
		{
			name:    "no object",
			content: "no idea",
			wantErr: true,
		},
		{
			name:    "empty intent",
			content: `{"intent":"","confidence":0.9}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVerdict() = %+v, want error", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVerdict() error = %v", err)
			}
			if v.Intent != tt.wantIntent || v.RiskLevel != tt.wantRisk || v.Confidence != tt.wantConf {
				t.Errorf("ParseVerdict() = %+v", v)
			}
			if v.Fallback {
				t.Error("ParseVerdict() marked verdict as fallback")
			}
		})
	}
}

func TestParseVerdict_RecommendedActions(t *testing.T) {
	v, err := ParseVerdict(`{"intent":"dispute_resolution","confidence":0.88,"reasoning":"buyer dispute",
		"recommendedActions":[
			{"action":"freeze_escrow","priority":"critical","estimatedTime":"1m","requiresHuman":false},
			{"action":"","priority":"low"},
			{"action":"contact_parties","priority":"whenever","requiresHuman":true}
		],"riskLevel":"high"}`)
	if err != nil {
		t.Fatalf("ParseVerdict() error = %v", err)
	}
	if len(v.RecommendedActions) != 2 {
		t.Fatalf("RecommendedActions = %+v, want 2 entries", v.RecommendedActions)
	}
	if v.RecommendedActions[0].Priority != domain.PriorityCritical {
		t.Errorf("first priority = %s", v.RecommendedActions[0].Priority)
	}
	if v.RecommendedActions[1].Priority != domain.PriorityMedium || !v.RecommendedActions[1].RequiresHuman {
		t.Errorf("second action = %+v", v.RecommendedActions[1])
	}
	if !v.RequiresHuman() {
		t.Error("RequiresHuman() = false, want true")
	}
}

func TestFallbackIntent(t *testing.T) {
	tests := []struct {
		eventType domain.EventType
		want      domain.Intent
	}{
		{domain.EventBookingCreated, domain.IntentBookingManagement},
		{domain.EventBookingCancelled, domain.IntentBookingManagement},
		{domain.EventPaymentFailed, domain.IntentPaymentProcessing},
		{domain.EventEscrowCreated, domain.IntentEscrowManagement},
		{domain.EventEscrowReleased, domain.IntentEscrowManagement},
		{domain.EventEscrowDispute, domain.IntentDisputeResolution},
		{domain.EventProviderVerified, domain.IntentProviderManagement},
		{domain.EventSupportEscalation, domain.IntentCustomerSupport},
		{domain.EventSystemAlert, domain.IntentOperations},
		{domain.EventSecurityAlert, domain.IntentSecurityAudit},
		{domain.EventComplianceCheck, domain.IntentCompliance},
		{domain.EventGPSLocation, domain.IntentLocationTracking},
		{domain.EventPOSTransaction, domain.IntentPOSIntegration},
		{domain.EventCRMUpdate, domain.IntentCRMSync},
		{domain.EventMarketingCampaign, domain.IntentMarketing},
		{domain.EventAnalyticsReport, domain.IntentAnalytics},
		{domain.EventApp, domain.IntentOther},
		{"something_else", domain.IntentOther},
	}
	for _, tt := range tests {
		if got := FallbackIntent(tt.eventType); got != tt.want {
			t.Errorf("FallbackIntent(%s) = %s, want %s", tt.eventType, got, tt.want)
		}
	}
}
