package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the business occurrence an Event describes.
type EventType string

const (
	EventBookingCreated     EventType = "booking_created"
	EventBookingUpdated     EventType = "booking_updated"
	EventBookingConfirmed   EventType = "booking_confirmed"
	EventBookingCancelled   EventType = "booking_cancelled"
	EventBookingCompleted   EventType = "booking_completed"
	EventPaymentReceived    EventType = "payment_received"
	EventPaymentFailed      EventType = "payment_failed"
	EventPaymentRefunded    EventType = "payment_refunded"
	EventEscrowCreated      EventType = "escrow_created"
	EventEscrowReleased     EventType = "escrow_released"
	EventEscrowDispute      EventType = "escrow_dispute"
	EventProviderRegistered EventType = "provider_registered"
	EventProviderVerified   EventType = "provider_verified"
	EventProviderRejected   EventType = "provider_rejected"
	EventProviderUpdated    EventType = "provider_updated"
	EventSupportRequest     EventType = "support_request"
	EventSupportEscalation  EventType = "support_escalation"
	EventGPSLocation        EventType = "gps_location"
	EventPOSTransaction     EventType = "pos_transaction"
	EventCRMUpdate          EventType = "crm_update"
	EventSystemAlert        EventType = "system_alert"
	EventSecurityAlert      EventType = "security_alert"
	EventComplianceCheck    EventType = "compliance_check"
	EventMarketingCampaign  EventType = "marketing_campaign"
	EventAnalyticsReport    EventType = "analytics_report"
	EventApp                EventType = "app_event"
	EventWebhookReceived    EventType = "webhook_received"
)

// EventSource identifies the channel an Event arrived on.
type EventSource string

const (
	SourceAPI            EventSource = "api"
	SourceApp            EventSource = "app"
	SourcePOS            EventSource = "pos"
	SourcePayments       EventSource = "payments"
	SourceGPS            EventSource = "gps"
	SourceCRM            EventSource = "crm"
	SourceSystem         EventSource = "system"
	SourceWebhook        EventSource = "webhook"
	SourceWorkflowEngine EventSource = "workflow-engine"
)

// EventContext carries optional correlation identifiers for an event.
type EventContext struct {
	UserID     string         `json:"user_id,omitempty"`
	BookingID  string         `json:"booking_id,omitempty"`
	ProviderID string         `json:"provider_id,omitempty"`
	EscrowID   string         `json:"escrow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RawEvent is an event as submitted by a caller or intake adapter, before
// normalization.
type RawEvent struct {
	Type    string         `json:"type"`
	Source  string         `json:"source"`
	Data    map[string]any `json:"data,omitempty"`
	Context *EventContext  `json:"context,omitempty"`
}

// Event is the canonical, immutable envelope the orchestrator processes.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Source     EventSource    `json:"source"`
	Data       map[string]any `json:"data,omitempty"`
	Context    EventContext   `json:"context"`
	ReceivedAt time.Time      `json:"received_at"`
}

// NewEvent validates raw and wraps it into an Event with a fresh identifier
// and receipt timestamp.
func NewEvent(raw RawEvent) (*Event, error) {
	eventType := strings.TrimSpace(raw.Type)
	source := strings.ToLower(strings.TrimSpace(raw.Source))

	if eventType == "" {
		return nil, &InvalidEventError{Field: "type", Message: "event type is required"}
	}
	if source == "" {
		return nil, &InvalidEventError{Field: "source", Message: "event source is required"}
	}

	ev := &Event{
		ID:         uuid.NewString(),
		Type:       EventType(eventType),
		Source:     EventSource(source),
		Data:       copyMap(raw.Data),
		ReceivedAt: time.Now().UTC(),
	}
	if raw.Context != nil {
		ev.Context = *raw.Context
		ev.Context.Metadata = copyMap(raw.Context.Metadata)
	}
	return ev, nil
}

// DataString returns data[key] as a string. Numbers are formatted without
// exponent; other kinds return "".
func (e *Event) DataString(key string) string {
	switch v := e.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// DataFloat returns data[key] as a float64 when it is numeric or a numeric string.
func (e *Event) DataFloat(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// DataBool returns data[key] as a bool.
func (e *Event) DataBool(key string) bool {
	switch v := e.Data[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// UserID resolves the user correlation id from the context, then the payload.
func (e *Event) UserID() string {
	return firstNonEmpty(e.Context.UserID, e.DataString("userId"))
}

// BookingID resolves the booking correlation id from the context, then the payload.
func (e *Event) BookingID() string {
	return firstNonEmpty(e.Context.BookingID, e.DataString("bookingId"))
}

// ProviderID resolves the provider correlation id from the context, then the payload.
func (e *Event) ProviderID() string {
	return firstNonEmpty(e.Context.ProviderID, e.DataString("providerId"))
}

// EscrowID resolves the escrow correlation id from the context, then the payload.
func (e *Event) EscrowID() string {
	return firstNonEmpty(e.Context.EscrowID, e.DataString("escrowId"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
