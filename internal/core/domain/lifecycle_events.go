package domain

import (
	"time"
)

// LifecycleEvent is a high-level state change of an interaction, published
// to an event bus for decoupled consumers (notifications, analytics).
// InteractionEvent is the detailed audit trail; this is the broadcast.
type LifecycleEvent struct {
	Type          LifecycleEventType `json:"type"`
	InteractionID string             `json:"interaction_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Data          any                `json:"data"`
}

// LifecycleEventType identifies the type of lifecycle event.
type LifecycleEventType string

const (
	LifecycleEventStarted   LifecycleEventType = "interaction.started"
	LifecycleEventCompleted LifecycleEventType = "interaction.completed"
	LifecycleEventFailed    LifecycleEventType = "interaction.failed"
	LifecycleEventEscalated LifecycleEventType = "interaction.escalated"
	LifecycleEventResolved  LifecycleEventType = "interaction.resolved"
)

// LifecycleStartedData contains data for interaction.started events.
type LifecycleStartedData struct {
	EventType EventType   `json:"event_type"`
	Source    EventSource `json:"source"`
}

// LifecycleCompletedData contains data for interaction.completed events.
type LifecycleCompletedData struct {
	SubAgent  string        `json:"sub_agent"`
	Workflows int           `json:"workflows"`
	Duration  time.Duration `json:"duration_ns"`
}

// LifecycleFailedData contains data for interaction.failed events.
type LifecycleFailedData struct {
	Error *InteractionError `json:"error"`
}

// LifecycleEscalatedData contains data for interaction.escalated events.
type LifecycleEscalatedData struct {
	EventType EventType `json:"event_type"`
	Intent    Intent    `json:"intent,omitempty"`
	Reason    string    `json:"reason"`
	Priority  Priority  `json:"priority"`
	Critical  bool      `json:"critical,omitempty"`
}

// LifecycleResolvedData contains data for interaction.resolved events.
type LifecycleResolvedData struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes,omitempty"`
}
