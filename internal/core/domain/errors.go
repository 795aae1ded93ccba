package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the category of an orchestrator error.
type ErrorType string

const (
	// ErrorTypeInvalidEvent indicates a malformed event submission.
	ErrorTypeInvalidEvent ErrorType = "invalid_event"

	// ErrorTypeClassification indicates the classification oracle failed.
	ErrorTypeClassification ErrorType = "classification"

	// ErrorTypeUnknownSubAgent indicates no handler is registered for a sub-agent name.
	ErrorTypeUnknownSubAgent ErrorType = "unknown_sub_agent"

	// ErrorTypeSubAgent indicates a sub-agent failed while processing.
	ErrorTypeSubAgent ErrorType = "sub_agent"

	// ErrorTypeWorkflow indicates a workflow trigger failed.
	ErrorTypeWorkflow ErrorType = "workflow"

	// ErrorTypeIntake indicates an accepted event could not be queued.
	ErrorTypeIntake ErrorType = "intake"

	// ErrorTypeNotEscalated indicates an escalation operation on a non-escalated interaction.
	ErrorTypeNotEscalated ErrorType = "not_escalated"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict indicates a concurrent modification.
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeStorage indicates the ledger could not be read or written.
	ErrorTypeStorage ErrorType = "storage"

	// ErrorTypeInternal indicates an unexpected failure.
	ErrorTypeInternal ErrorType = "internal"
)

var (
	// ErrVersionConflict is returned by stores when an update carries a stale version.
	ErrVersionConflict = errors.New("interaction version conflict")

	// ErrInvalidTransition is returned when a status change is not permitted.
	ErrInvalidTransition = errors.New("invalid interaction status transition")

	// ErrWorkflowUnavailable is returned when the workflow engine cannot be reached.
	ErrWorkflowUnavailable = errors.New("workflow engine unavailable")
)

// InvalidEventError is returned when an event is missing a required field.
type InvalidEventError struct {
	Field   string
	Message string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s", e.Message)
}

// ClassificationError wraps a failure of the classification oracle.
type ClassificationError struct {
	EventID string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify event %s: %v", e.EventID, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// UnknownSubAgentError is returned when the registry has no handler for a name.
type UnknownSubAgentError struct {
	Name string
}

func (e *UnknownSubAgentError) Error() string {
	return fmt.Sprintf("unknown sub-agent: %s", e.Name)
}

// SubAgentProcessingError wraps a failure raised by a sub-agent. Critical
// failures force an escalation in addition to failing the interaction.
type SubAgentProcessingError struct {
	Agent    string
	Critical bool
	Err      error
}

func (e *SubAgentProcessingError) Error() string {
	return fmt.Sprintf("sub-agent %s: %v", e.Agent, e.Err)
}

func (e *SubAgentProcessingError) Unwrap() error { return e.Err }

// WorkflowTriggerError describes a failed workflow invocation.
type WorkflowTriggerError struct {
	Workflow   string
	StatusCode int
	Err        error
}

func (e *WorkflowTriggerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("trigger workflow %s: status %d: %v", e.Workflow, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("trigger workflow %s: %v", e.Workflow, e.Err)
}

func (e *WorkflowTriggerError) Unwrap() error { return e.Err }

// NotEscalatedError is returned by escalation operations on an interaction
// that was never escalated.
type NotEscalatedError struct {
	InteractionID string
	Status        InteractionStatus
}

func (e *NotEscalatedError) Error() string {
	return fmt.Sprintf("interaction %s is not escalated (status %s)", e.InteractionID, e.Status)
}

// InteractionNotFoundError is returned when no interaction has the given id.
type InteractionNotFoundError struct {
	ID string
}

func (e *InteractionNotFoundError) Error() string {
	return fmt.Sprintf("interaction not found: %s", e.ID)
}

// IsInvalidEvent reports whether err is an InvalidEventError.
func IsInvalidEvent(err error) bool {
	var target *InvalidEventError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is an InteractionNotFoundError.
func IsNotFound(err error) bool {
	var target *InteractionNotFoundError
	return errors.As(err, &target)
}

// IsNotEscalated reports whether err is a NotEscalatedError.
func IsNotEscalated(err error) bool {
	var target *NotEscalatedError
	return errors.As(err, &target)
}

// IsCritical reports whether err should force an escalation.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var target *SubAgentProcessingError
	if errors.As(err, &target) && target.Critical {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "critical")
}

// TypeOf returns the ErrorType for err.
func TypeOf(err error) ErrorType {
	var (
		invalid      *InvalidEventError
		classify     *ClassificationError
		unknown      *UnknownSubAgentError
		subAgent     *SubAgentProcessingError
		trigger      *WorkflowTriggerError
		notEscalated *NotEscalatedError
		notFound     *InteractionNotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		return ErrorTypeInvalidEvent
	case errors.As(err, &classify):
		return ErrorTypeClassification
	case errors.As(err, &unknown):
		return ErrorTypeUnknownSubAgent
	case errors.As(err, &subAgent):
		return ErrorTypeSubAgent
	case errors.As(err, &trigger), errors.Is(err, ErrWorkflowUnavailable):
		return ErrorTypeWorkflow
	case errors.As(err, &notEscalated):
		return ErrorTypeNotEscalated
	case errors.As(err, &notFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrInvalidTransition):
		return ErrorTypeConflict
	default:
		return ErrorTypeInternal
	}
}

// HTTPStatusCode returns the HTTP status code the control plane uses for err.
func HTTPStatusCode(err error) int {
	switch TypeOf(err) {
	case ErrorTypeInvalidEvent:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeNotEscalated, ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeWorkflow:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
