package domain

import (
	"fmt"
	"time"
)

// Interaction is the ledger record for one event passing through the
// orchestrator. Its ID is the ID of the event it was created for.
type Interaction struct {
	// ID is the event ID this interaction tracks
	ID string `json:"id"`

	// Event is the normalized event as it was received
	Event Event `json:"event"`

	// Classification is the verdict produced for the event, nil until classified
	Classification *Verdict `json:"classification,omitempty"`

	// AssignedSubAgent is the sub-agent chosen by the router
	AssignedSubAgent string `json:"assigned_sub_agent,omitempty"`

	// Status is the current lifecycle state
	Status InteractionStatus `json:"status"`

	// ActionsTaken is an append-only log of what the sub-agent did
	ActionsTaken []ActionEntry `json:"actions_taken,omitempty"`

	// Workflows is an append-only log of workflow trigger attempts
	Workflows []WorkflowRun `json:"workflows,omitempty"`

	Escalation Escalation `json:"escalation"`

	// ProcessingTime is the wall time from creation to the terminal status
	ProcessingTime time.Duration `json:"processing_time_ns"`

	Error *InteractionError `json:"error,omitempty"`

	// Version increases by one on every successful store update
	Version int64 `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// InteractionStatus represents the lifecycle state of an interaction
type InteractionStatus string

const (
	InteractionStatusPending    InteractionStatus = "pending"
	InteractionStatusProcessing InteractionStatus = "processing"
	InteractionStatusCompleted  InteractionStatus = "completed"
	InteractionStatusEscalated  InteractionStatus = "escalated"
	InteractionStatusFailed     InteractionStatus = "failed"
	InteractionStatusCancelled  InteractionStatus = "cancelled"
)

// IsTerminal reports whether no further automated transition is possible.
func (s InteractionStatus) IsTerminal() bool {
	switch s {
	case InteractionStatusCompleted, InteractionStatusEscalated,
		InteractionStatusFailed, InteractionStatusCancelled:
		return true
	}
	return false
}

var allowedTransitions = map[InteractionStatus][]InteractionStatus{
	InteractionStatusPending: {
		InteractionStatusProcessing,
		InteractionStatusCancelled,
		InteractionStatusFailed,
	},
	InteractionStatusProcessing: {
		InteractionStatusCompleted,
		InteractionStatusEscalated,
		InteractionStatusFailed,
	},
}

// ActionEntry is one step taken by a sub-agent. Workflows names the
// workflows the sub-agent requested alongside it.
type ActionEntry struct {
	Action    string    `json:"action"`
	SubAgent  string    `json:"sub_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Result    any       `json:"result,omitempty"`
	Workflows []string  `json:"workflows,omitempty"`
}

// WorkflowRunStatus is the outcome of a workflow trigger attempt.
type WorkflowRunStatus string

const (
	WorkflowRunPending   WorkflowRunStatus = "pending"
	WorkflowRunRunning   WorkflowRunStatus = "running"
	WorkflowRunSuccess   WorkflowRunStatus = "success"
	WorkflowRunFailed    WorkflowRunStatus = "failed"
	WorkflowRunCancelled WorkflowRunStatus = "cancelled"
)

// WorkflowRun records one attempt to trigger an external workflow.
type WorkflowRun struct {
	WorkflowID   string            `json:"workflow_id"`
	WorkflowName string            `json:"workflow_name"`
	ExecutionID  string            `json:"execution_id,omitempty"`
	Status       WorkflowRunStatus `json:"status"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	Result       map[string]any    `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Escalation holds the human hand-off metadata of an interaction.
type Escalation struct {
	Escalated       bool       `json:"escalated"`
	Reason          string     `json:"reason,omitempty"`
	Priority        Priority   `json:"priority,omitempty"`
	EscalatedAt     *time.Time `json:"escalated_at,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
}

// InteractionError contains error details
type InteractionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NewInteraction creates an interaction for ev in the given initial status.
func NewInteraction(ev *Event, status InteractionStatus) *Interaction {
	now := time.Now().UTC()
	return &Interaction{
		ID:        ev.ID,
		Event:     *ev,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the interaction to next. Terminal statuses are stamped
// with CompletedAt and ProcessingTime.
func (i *Interaction) Transition(next InteractionStatus) error {
	for _, s := range allowedTransitions[i.Status] {
		if s == next {
			now := time.Now().UTC()
			i.Status = next
			i.UpdatedAt = now
			if next.IsTerminal() {
				i.CompletedAt = &now
				i.ProcessingTime = now.Sub(i.CreatedAt)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, next)
}

// Fail transitions to failed and records err.
func (i *Interaction) Fail(errType string, err error) error {
	i.Error = &InteractionError{Type: errType, Message: err.Error()}
	return i.Transition(InteractionStatusFailed)
}

// Cancel withdraws a pending interaction and records why.
func (i *Interaction) Cancel(errType string, err error) error {
	if i.Status != InteractionStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, InteractionStatusCancelled)
	}
	i.Error = &InteractionError{Type: errType, Message: err.Error()}
	return i.Transition(InteractionStatusCancelled)
}

// RecordAction appends an entry to the action log.
func (i *Interaction) RecordAction(action string, result any) {
	i.AppendAction(ActionEntry{Action: action, Result: result})
}

// AppendAction appends e to the action log, stamping it if needed.
func (i *Interaction) AppendAction(e ActionEntry) {
	now := time.Now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	i.ActionsTaken = append(i.ActionsTaken, e)
	i.UpdatedAt = now
}

// RecordWorkflow appends a run to the workflow log.
func (i *Interaction) RecordWorkflow(run WorkflowRun) {
	i.Workflows = append(i.Workflows, run)
	i.UpdatedAt = time.Now().UTC()
}

// MarkEscalated fills the escalation metadata without touching Status.
func (i *Interaction) MarkEscalated(reason string, priority Priority) {
	now := time.Now().UTC()
	i.Escalation.Escalated = true
	i.Escalation.Reason = reason
	i.Escalation.Priority = priority
	i.Escalation.EscalatedAt = &now
	i.UpdatedAt = now
}

// Assign records the operator taking an escalated interaction. Failed
// interactions carrying the escalation flag qualify.
func (i *Interaction) Assign(assignee string) error {
	if !i.Escalation.Escalated {
		return &NotEscalatedError{InteractionID: i.ID, Status: i.Status}
	}
	now := time.Now().UTC()
	i.Escalation.AssignedTo = assignee
	i.Escalation.AssignedAt = &now
	i.UpdatedAt = now
	return nil
}

// Resolve closes an escalated interaction.
func (i *Interaction) Resolve(resolver, notes string) error {
	if !i.Escalation.Escalated {
		return &NotEscalatedError{InteractionID: i.ID, Status: i.Status}
	}
	now := time.Now().UTC()
	i.Escalation.Resolved = true
	i.Escalation.ResolvedBy = resolver
	i.Escalation.ResolvedAt = &now
	i.Escalation.ResolutionNotes = notes
	i.UpdatedAt = now
	return nil
}

// Clone returns a copy that shares no mutable slices with i.
func (i *Interaction) Clone() *Interaction {
	c := *i
	c.Event.Data = copyMap(i.Event.Data)
	c.Event.Context.Metadata = copyMap(i.Event.Context.Metadata)
	if i.Classification != nil {
		v := *i.Classification
		v.RecommendedActions = append([]RecommendedAction(nil), i.Classification.RecommendedActions...)
		c.Classification = &v
	}
	c.ActionsTaken = append([]ActionEntry(nil), i.ActionsTaken...)
	for n := range c.ActionsTaken {
		c.ActionsTaken[n].Workflows = append([]string(nil), i.ActionsTaken[n].Workflows...)
	}
	c.Workflows = append([]WorkflowRun(nil), i.Workflows...)
	for n := range c.Workflows {
		c.Workflows[n].Result = copyMap(i.Workflows[n].Result)
	}
	if i.Error != nil {
		e := *i.Error
		c.Error = &e
	}
	return &c
}

// InteractionSummary provides a lightweight view of an interaction for listing
type InteractionSummary struct {
	ID               string            `json:"id"`
	EventType        EventType         `json:"event_type"`
	Source           EventSource       `json:"source"`
	Intent           Intent            `json:"intent,omitempty"`
	RiskLevel        RiskLevel         `json:"risk_level,omitempty"`
	AssignedSubAgent string            `json:"assigned_sub_agent,omitempty"`
	Status           InteractionStatus `json:"status"`
	Escalated        bool              `json:"escalated"`
	Priority         Priority          `json:"priority,omitempty"`
	ProcessingTime   time.Duration     `json:"processing_time_ns"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ToSummary converts an Interaction to an InteractionSummary
func (i *Interaction) ToSummary() *InteractionSummary {
	s := &InteractionSummary{
		ID:               i.ID,
		EventType:        i.Event.Type,
		Source:           i.Event.Source,
		AssignedSubAgent: i.AssignedSubAgent,
		Status:           i.Status,
		Escalated:        i.Escalation.Escalated,
		Priority:         i.Escalation.Priority,
		ProcessingTime:   i.ProcessingTime,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
	if i.Classification != nil {
		s.Intent = i.Classification.Intent
		s.RiskLevel = i.Classification.RiskLevel
	}
	return s
}

// Analytics aggregates the ledger over a time range.
type Analytics struct {
	Total                 int                       `json:"total"`
	ByIntent              map[Intent]int            `json:"by_intent"`
	ByStatus              map[InteractionStatus]int `json:"by_status"`
	BySubAgent            map[string]int            `json:"by_sub_agent"`
	EscalationRate        float64                   `json:"escalation_rate"`
	AverageProcessingTime time.Duration             `json:"average_processing_time_ns"`
	TopWorkflows          []WorkflowCount           `json:"top_workflows"`
}

// WorkflowCount is a workflow name with its trigger count.
type WorkflowCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
