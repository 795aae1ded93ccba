// Package storagetest holds behaviour tests shared by every
// ports.InteractionStore implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) ports.InteractionStore

// Run executes the store suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("OptimisticUpdate", func(t *testing.T) { testOptimisticUpdate(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("Analytics", func(t *testing.T) { testAnalytics(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
}

// NewInteraction builds an interaction for an event of the given type.
func NewInteraction(t *testing.T, eventType domain.EventType, data map[string]any) *domain.Interaction {
	t.Helper()
	ev, err := domain.NewEvent(domain.RawEvent{Type: string(eventType), Source: "api", Data: data})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return domain.NewInteraction(ev, domain.InteractionStatusProcessing)
}

func testCreateGet(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	ctx := context.Background()

	i := NewInteraction(t, domain.EventBookingCreated, map[string]any{"bookingId": "b-1"})
	i.Classification = &domain.Verdict{Intent: domain.IntentBookingManagement, Confidence: 0.9, RiskLevel: domain.RiskLow}
	i.AppendAction(domain.ActionEntry{Action: "schedule_reminders", SubAgent: "booking", Workflows: []string{"booking-reminders"}})
	i.RecordWorkflow(domain.WorkflowRun{WorkflowName: "booking-reminders", WorkflowID: "w1", Status: domain.WorkflowRunSuccess, StartedAt: time.Now(), Result: map[string]any{"state": "queued"}})
	if err := store.CreateInteraction(ctx, i); err != nil {
		t.Fatalf("CreateInteraction() error = %v", err)
	}
	if i.Version != 1 {
		t.Errorf("Version = %d, want 1", i.Version)
	}

	got, err := store.GetInteraction(ctx, i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if got.Status != domain.InteractionStatusProcessing {
		t.Errorf("Status = %s, want processing", got.Status)
	}
	if got.Classification == nil || got.Classification.Intent != domain.IntentBookingManagement {
		t.Errorf("Classification = %+v", got.Classification)
	}
	if got.Event.BookingID() != "b-1" {
		t.Errorf("BookingID() = %q, want b-1", got.Event.BookingID())
	}
	if len(got.ActionsTaken) != 1 || got.ActionsTaken[0].SubAgent != "booking" || len(got.ActionsTaken[0].Workflows) != 1 {
		t.Errorf("ActionsTaken = %+v", got.ActionsTaken)
	}
	if len(got.Workflows) != 1 || got.Workflows[0].Result["state"] != "queued" {
		t.Errorf("Workflows = %+v", got.Workflows)
	}

	if err := store.CreateInteraction(ctx, i); err == nil {
		t.Error("CreateInteraction() duplicate error = nil, want error")
	}
}

func testGetMissing(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	_, err := store.GetInteraction(context.Background(), "missing")
	if !domain.IsNotFound(err) {
		t.Fatalf("GetInteraction() error = %v, want InteractionNotFoundError", err)
	}
}

func testOptimisticUpdate(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	ctx := context.Background()

	i := NewInteraction(t, domain.EventEscrowDispute, nil)
	if err := store.CreateInteraction(ctx, i); err != nil {
		t.Fatalf("CreateInteraction() error = %v", err)
	}

	stale, err := store.GetInteraction(ctx, i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}

	i.MarkEscalated("escrow dispute", domain.PriorityHigh)
	if err := i.Transition(domain.InteractionStatusEscalated); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := store.UpdateInteraction(ctx, i); err != nil {
		t.Fatalf("UpdateInteraction() error = %v", err)
	}
	if i.Version != 2 {
		t.Errorf("Version = %d, want 2", i.Version)
	}

	stale.RecordAction("late write", nil)
	if err := store.UpdateInteraction(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("UpdateInteraction() stale error = %v, want ErrVersionConflict", err)
	}

	got, err := store.GetInteraction(ctx, i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if got.Status != domain.InteractionStatusEscalated || len(got.ActionsTaken) != 0 {
		t.Errorf("stored = status %s, %d actions; want escalated with no actions", got.Status, len(got.ActionsTaken))
	}

	missing := NewInteraction(t, domain.EventCRMUpdate, nil)
	if err := store.UpdateInteraction(ctx, missing); !domain.IsNotFound(err) {
		t.Errorf("UpdateInteraction() missing error = %v, want InteractionNotFoundError", err)
	}
}

func testListFilters(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seed := []struct {
		eventType domain.EventType
		intent    domain.Intent
		agent     string
		escalate  bool
		data      map[string]any
	}{
		{domain.EventBookingCreated, domain.IntentBookingManagement, "booking_agent", false, map[string]any{"bookingId": "b-1"}},
		{domain.EventBookingCancelled, domain.IntentBookingManagement, "booking_agent", false, map[string]any{"bookingId": "b-2"}},
		{domain.EventPaymentFailed, domain.IntentPaymentProcessing, "payment_agent", true, map[string]any{"userId": "u-9"}},
		{domain.EventEscrowDispute, domain.IntentDisputeResolution, "", true, nil},
	}
	for n, s := range seed {
		i := NewInteraction(t, s.eventType, s.data)
		i.CreatedAt = base.Add(time.Duration(n) * time.Minute)
		i.Classification = &domain.Verdict{Intent: s.intent, RiskLevel: domain.RiskMedium}
		i.AssignedSubAgent = s.agent
		if s.escalate {
			i.MarkEscalated("test", domain.PriorityHigh)
			i.Status = domain.InteractionStatusEscalated
		}
		if err := store.CreateInteraction(ctx, i); err != nil {
			t.Fatalf("CreateInteraction() error = %v", err)
		}
	}

	yes := true
	tests := []struct {
		name   string
		filter ports.InteractionFilter
		want   int
	}{
		{"all", ports.InteractionFilter{}, 4},
		{"intent", ports.InteractionFilter{Intent: domain.IntentBookingManagement}, 2},
		{"sub-agent", ports.InteractionFilter{SubAgent: "payment_agent"}, 1},
		{"escalated", ports.InteractionFilter{Escalated: &yes}, 2},
		{"status", ports.InteractionFilter{Status: domain.InteractionStatusEscalated}, 2},
		{"event type", ports.InteractionFilter{EventType: domain.EventBookingCancelled}, 1},
		{"booking id", ports.InteractionFilter{BookingID: "b-2"}, 1},
		{"user id", ports.InteractionFilter{UserID: "u-9"}, 1},
		{"from", ports.InteractionFilter{From: base.Add(90 * time.Second)}, 2},
		{"to", ports.InteractionFilter{To: base.Add(90 * time.Second)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.ListInteractions(ctx, tt.filter, ports.Page{})
			if err != nil {
				t.Fatalf("ListInteractions() error = %v", err)
			}
			if page.Total != tt.want || len(page.Items) != tt.want {
				t.Errorf("ListInteractions() total = %d, items = %d, want %d", page.Total, len(page.Items), tt.want)
			}
		})
	}

	page, err := store.ListInteractions(ctx, ports.InteractionFilter{}, ports.Page{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListInteractions() error = %v", err)
	}
	if page.Total != 4 || len(page.Items) != 2 {
		t.Fatalf("paged total = %d, items = %d", page.Total, len(page.Items))
	}
	if page.Items[0].EventType != domain.EventPaymentFailed {
		t.Errorf("Items[0].EventType = %s, want newest-first order", page.Items[0].EventType)
	}
}

func testAnalytics(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	ctx := context.Background()

	for n, intent := range []domain.Intent{domain.IntentBookingManagement, domain.IntentBookingManagement, domain.IntentPaymentProcessing, domain.IntentEscrowManagement} {
		i := NewInteraction(t, domain.EventBookingCreated, nil)
		i.Classification = &domain.Verdict{Intent: intent, RiskLevel: domain.RiskLow}
		i.AssignedSubAgent = "booking_agent"
		i.RecordWorkflow(domain.WorkflowRun{WorkflowName: "booking-reminders", WorkflowID: "w1", Status: domain.WorkflowRunSuccess, StartedAt: time.Now()})
		if n == 0 {
			i.RecordWorkflow(domain.WorkflowRun{WorkflowName: "crm-sync", WorkflowID: "w2", Status: domain.WorkflowRunFailed, StartedAt: time.Now()})
		}
		if err := store.CreateInteraction(ctx, i); err != nil {
			t.Fatalf("CreateInteraction() error = %v", err)
		}
		if n == 3 {
			i.MarkEscalated("review", domain.PriorityMedium)
			if err := i.Transition(domain.InteractionStatusEscalated); err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
		} else if err := i.Transition(domain.InteractionStatusCompleted); err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
		if err := store.UpdateInteraction(ctx, i); err != nil {
			t.Fatalf("UpdateInteraction() error = %v", err)
		}
	}

	a, err := store.Analytics(ctx, ports.TimeRange{})
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if a.Total != 4 {
		t.Errorf("Total = %d, want 4", a.Total)
	}
	if a.ByIntent[domain.IntentBookingManagement] != 2 {
		t.Errorf("ByIntent[booking_management] = %d, want 2", a.ByIntent[domain.IntentBookingManagement])
	}
	if a.ByStatus[domain.InteractionStatusCompleted] != 3 {
		t.Errorf("ByStatus[completed] = %d, want 3", a.ByStatus[domain.InteractionStatusCompleted])
	}
	if a.BySubAgent["booking_agent"] != 4 {
		t.Errorf("BySubAgent[booking_agent] = %d, want 4", a.BySubAgent["booking_agent"])
	}
	if a.EscalationRate != 0.25 {
		t.Errorf("EscalationRate = %v, want 0.25", a.EscalationRate)
	}
	if len(a.TopWorkflows) != 2 || a.TopWorkflows[0].Name != "booking-reminders" || a.TopWorkflows[0].Count != 4 {
		t.Errorf("TopWorkflows = %+v", a.TopWorkflows)
	}

	future, err := store.Analytics(ctx, ports.TimeRange{From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if future.Total != 0 || future.EscalationRate != 0 {
		t.Errorf("future range = %+v, want empty", future)
	}
}

func testEvents(t *testing.T, store ports.InteractionStore) {
	defer store.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	stages := []domain.Stage{domain.StageReceived, domain.StageClassified, domain.StageCompleted}
	for n, stage := range stages {
		evt := &domain.InteractionEvent{
			ID:            uuid.NewString(),
			InteractionID: "i-1",
			Stage:         stage,
			Metadata:      []byte(`{"n":1}`),
			CreatedAt:     now.Add(time.Duration(n) * time.Millisecond),
		}
		if err := store.AppendInteractionEvent(ctx, evt); err != nil {
			t.Fatalf("AppendInteractionEvent() error = %v", err)
		}
	}

	events, err := store.ListInteractionEvents(ctx, "i-1")
	if err != nil {
		t.Fatalf("ListInteractionEvents() error = %v", err)
	}
	if len(events) != len(stages) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(stages))
	}
	for n, stage := range stages {
		if events[n].Stage != stage {
			t.Errorf("events[%d].Stage = %s, want %s", n, events[n].Stage, stage)
		}
	}

	none, err := store.ListInteractionEvents(ctx, "other")
	if err != nil {
		t.Fatalf("ListInteractionEvents() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}
