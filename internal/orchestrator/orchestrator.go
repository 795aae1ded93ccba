// Package orchestrator runs every event through classification, escalation,
// sub-agent processing and workflow triggering, and keeps the Interaction
// ledger up to date along the way.
//
// Events arrive on two paths. SubmitEvent runs the pipeline synchronously
// and returns the outcome to the caller. Accept records a pending
// interaction for the intake queue, which later calls ProcessAccepted from
// its single consumer goroutine.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/automation-orchestrator/internal/adapters/notify"
	"github.com/tjfontaine/automation-orchestrator/internal/agents"
	"github.com/tjfontaine/automation-orchestrator/internal/classifier"
	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/escalation"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
	"github.com/tjfontaine/automation-orchestrator/internal/workflow"
)

// Classifier produces a verdict for every event. Implemented by
// *classifier.Classifier.
type Classifier interface {
	Classify(ctx context.Context, ev *domain.Event) domain.Verdict
}

// Trigger starts workflows. Implemented by *workflow.Executor.
type Trigger interface {
	Trigger(ctx context.Context, nameOrID string, payload map[string]any) workflow.TriggerResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClassifier sets the classification oracle adapter.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) {
		o.classifier = c
	}
}

// WithEvaluator sets the escalation evaluator.
func WithEvaluator(e *escalation.Evaluator) Option {
	return func(o *Orchestrator) {
		o.evaluator = e
	}
}

// WithRouter sets the sub-agent router.
func WithRouter(r *agents.Router) Option {
	return func(o *Orchestrator) {
		o.router = r
	}
}

// WithTrigger sets the workflow trigger executor.
func WithTrigger(t Trigger) Option {
	return func(o *Orchestrator) {
		o.trigger = t
	}
}

// WithNotifier sets where escalation notifications go.
func WithNotifier(n ports.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p ports.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator is constructed once at start-up and shared by every entry
// point. It holds no per-event state.
type Orchestrator struct {
	store      ports.InteractionStore
	classifier Classifier
	evaluator  *escalation.Evaluator
	router     *agents.Router
	trigger    Trigger
	notifier   ports.Notifier
	publisher  ports.EventPublisher
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// New creates an orchestrator over store. Collaborators not supplied by an
// option get working defaults: lookup-table classification, all nine
// sub-agents, log-only notification and no workflow engine.
func New(store ports.InteractionStore, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("interaction store required")
	}
	o := &Orchestrator{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.classifier == nil {
		o.classifier = classifier.New(nil, classifier.WithLogger(o.logger))
	}
	if o.evaluator == nil {
		o.evaluator = escalation.New(escalation.WithLogger(o.logger))
	}
	if o.router == nil {
		o.router = agents.NewRouter(agents.NewRegistry(agents.WithLogger(o.logger)))
	}
	if o.trigger == nil {
		o.trigger = workflow.NewExecutor(nil, nil, workflow.WithLogger(o.logger))
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
	return o, nil
}

// SubmitEvent normalizes raw, records a processing interaction and runs the
// full pipeline before returning. Only an invalid event or a ledger that
// cannot record the interaction produce an error; every other failure is
// reported in the result.
func (o *Orchestrator) SubmitEvent(ctx context.Context, raw domain.RawEvent) (*ProcessingResult, error) {
	ev, err := domain.NewEvent(raw)
	if err != nil {
		return nil, err
	}

	in := domain.NewInteraction(ev, domain.InteractionStatusProcessing)
	if err := o.store.CreateInteraction(ctx, in); err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}
	return o.run(ctx, in), nil
}

// Accept normalizes raw and records it as a pending interaction without
// processing it.
func (o *Orchestrator) Accept(ctx context.Context, raw domain.RawEvent) (*domain.Interaction, error) {
	ev, err := domain.NewEvent(raw)
	if err != nil {
		return nil, err
	}

	in := domain.NewInteraction(ev, domain.InteractionStatusPending)
	if err := o.store.CreateInteraction(ctx, in); err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}
	o.logger.Debug("event accepted",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(ev.Type)),
		slog.String("source", string(ev.Source)),
	)
	return in, nil
}

// Cancel withdraws a pending interaction that will never be processed,
// e.g. because the intake queue rejected it.
func (o *Orchestrator) Cancel(ctx context.Context, in *domain.Interaction, reason error) error {
	if err := in.Cancel(string(domain.ErrorTypeIntake), reason); err != nil {
		return err
	}
	if err := o.store.UpdateInteraction(ctx, in); err != nil {
		return fmt.Errorf("cancel interaction %s: %w", in.ID, err)
	}
	o.timeline(ctx, in.ID, domain.StageCancelled, "", "", reason.Error(), nil)
	o.logger.Warn("interaction cancelled",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(in.Event.Type)),
		slog.String("reason", reason.Error()),
	)
	return nil
}

// ProcessAccepted moves a pending interaction to processing and runs the
// pipeline on it.
func (o *Orchestrator) ProcessAccepted(ctx context.Context, in *domain.Interaction) (*ProcessingResult, error) {
	if err := in.Transition(domain.InteractionStatusProcessing); err != nil {
		return nil, err
	}
	if err := o.store.UpdateInteraction(ctx, in); err != nil {
		return nil, fmt.Errorf("start interaction %s: %w", in.ID, err)
	}
	return o.run(ctx, in), nil
}
