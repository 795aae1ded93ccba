package domain

import (
	"encoding/json"
	"time"
)

// InteractionEvent represents a single auditable step in the orchestration
// pipeline. It is append-only and grouped by InteractionID to form a timeline.
type InteractionEvent struct {
	ID            string          `json:"id"`
	InteractionID string          `json:"interaction_id"`
	Stage         Stage           `json:"stage"`
	SubAgent      string          `json:"sub_agent,omitempty"`
	Workflow      string          `json:"workflow,omitempty"`
	Message       string          `json:"message,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Stage names a step of the pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageClassified Stage = "classified"
	StageEscalated  Stage = "escalated"
	StageRouted     Stage = "routed"
	StageProcessed  Stage = "processed"
	StageWorkflow   Stage = "workflow"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
	StageCancelled  Stage = "cancelled"
	StageAssigned   Stage = "assigned"
	StageResolved   Stage = "resolved"
)
