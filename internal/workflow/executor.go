// Package workflow triggers external automation workflows and resolves
// symbolic workflow names to engine identifiers.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
)

// ErrNotRegistered is reported when a name has no engine identifier.
var ErrNotRegistered = errors.New("workflow not registered")

// TriggerResult is the outcome of one trigger attempt. Trigger never
// returns a Go error; failures are carried in Error.
type TriggerResult struct {
	Success     bool           `json:"success"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Run converts the result into a ledger workflow log entry.
func (r TriggerResult) Run(name string) domain.WorkflowRun {
	finished := r.FinishedAt
	run := domain.WorkflowRun{
		WorkflowID:   r.WorkflowID,
		WorkflowName: name,
		ExecutionID:  r.ExecutionID,
		Status:       domain.WorkflowRunSuccess,
		StartedAt:    r.StartedAt,
		FinishedAt:   &finished,
		Result:       r.Data,
	}
	if !r.Success {
		run.Status = domain.WorkflowRunFailed
		run.Error = r.Error
	}
	return run
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(x *Executor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithMetrics records trigger outcomes.
func WithMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(x *Executor) {
		x.metrics = m
	}
}

// Executor resolves workflow names and triggers them on an engine.
type Executor struct {
	engine   ports.WorkflowEngine
	registry *Registry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewExecutor creates an executor. A nil engine fails every trigger with
// domain.ErrWorkflowUnavailable.
func NewExecutor(engine ports.WorkflowEngine, registry *Registry, opts ...ExecutorOption) *Executor {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	x := &Executor{
		engine:   engine,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Registry returns the name registry.
func (x *Executor) Registry() *Registry {
	return x.registry
}

// Trigger starts the workflow named or identified by nameOrID.
func (x *Executor) Trigger(ctx context.Context, nameOrID string, payload map[string]any) (res TriggerResult) {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.Trigger")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.name", nameOrID))

	res.StartedAt = time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("workflow engine panic: %v", r)
		}
		res.FinishedAt = time.Now().UTC()
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
			x.logger.Warn("workflow trigger failed",
				slog.String("workflow", nameOrID),
				slog.String("workflow_id", res.WorkflowID),
				slog.String("error", res.Error),
			)
		} else {
			span.SetAttributes(attribute.String("workflow.execution_id", res.ExecutionID))
			x.logger.Info("workflow triggered",
				slog.String("workflow", nameOrID),
				slog.String("workflow_id", res.WorkflowID),
				slog.String("execution_id", res.ExecutionID),
			)
		}
		x.metrics.IncWorkflowTrigger(nameOrID, res.Success)
	}()

	id, ok := x.registry.Resolve(nameOrID)
	if !ok {
		res.Error = fmt.Sprintf("%v: %s", ErrNotRegistered, nameOrID)
		return res
	}
	res.WorkflowID = id

	if x.engine == nil {
		res.Error = domain.ErrWorkflowUnavailable.Error()
		return res
	}

	exec, err := x.engine.Execute(ctx, id, payload)
	if err != nil {
		if errors.Is(err, domain.ErrWorkflowUnavailable) {
			res.Error = domain.ErrWorkflowUnavailable.Error()
		} else {
			res.Error = err.Error()
		}
		return res
	}

	res.Success = true
	res.ExecutionID = exec.ExecutionID
	res.Data = exec.Data
	return res
}
