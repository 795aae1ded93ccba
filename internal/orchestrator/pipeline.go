package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/automation-orchestrator/internal/agents"
	"github.com/tjfontaine/automation-orchestrator/internal/classifier"
	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/escalation"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
)

// run drives in from processing to a terminal status. It never returns an
// error; failures end up in the interaction and the result.
func (o *Orchestrator) run(ctx context.Context, in *domain.Interaction) (res *ProcessingResult) {
	// Once started, an event runs to a terminal status even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.Process",
		trace.WithAttributes(
			attribute.String("interaction.id", in.ID),
			attribute.String("event.type", string(in.Event.Type)),
			attribute.String("event.source", string(in.Event.Source)),
		))
	defer span.End()

	o.publish(ctx, in.ID, domain.LifecycleEventStarted, domain.LifecycleStartedData{
		EventType: in.Event.Type,
		Source:    in.Event.Source,
	})

	var result *ProcessingResult
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			o.logger.Error("pipeline panic",
				slog.String("interaction_id", in.ID),
				slog.Any("panic", r),
			)
			if !in.Status.IsTerminal() {
				o.fail(ctx, in, domain.ErrorTypeInternal, err, string(debug.Stack()))
			}
			result = o.finish(ctx, in, nil)
		}
		span.SetAttributes(attribute.String("interaction.status", string(in.Status)))
		if in.Status == domain.InteractionStatusFailed {
			span.SetStatus(codes.Error, result.Error)
		}
		o.metrics.ObserveEvent(string(in.Event.Type), string(in.Status), in.ProcessingTime)
		res = result
	}()

	result = o.pipeline(ctx, in)
	return result
}

func (o *Orchestrator) pipeline(ctx context.Context, in *domain.Interaction) *ProcessingResult {
	ev := &in.Event

	// Classification always yields a verdict.
	verdict := o.classifier.Classify(ctx, ev)
	in.Classification = &verdict
	in.UpdatedAt = time.Now().UTC()
	o.save(ctx, in)
	o.timeline(ctx, in.ID, domain.StageClassified, "", "", string(verdict.Intent), verdict)

	agent, routeErr := o.router.Select(verdict.Intent)

	decision := o.evaluator.Evaluate(ctx, ev, verdict, o.policies(ev, agent)...)
	if decision.Required {
		o.escalate(ctx, in, decision, false)
		return o.finish(ctx, in, nil)
	}

	if routeErr != nil {
		o.fail(ctx, in, domain.ErrorTypeUnknownSubAgent, routeErr, "")
		return o.finish(ctx, in, nil)
	}

	in.AssignedSubAgent = string(agent.Name())
	o.timeline(ctx, in.ID, domain.StageRouted, in.AssignedSubAgent, "", "", nil)

	out, err := o.process(ctx, agent, in, ev)
	if err != nil {
		o.fail(ctx, in, domain.ErrorTypeSubAgent, err, "")
		return o.finish(ctx, in, nil)
	}

	requested := make([]string, 0, len(out.Workflows))
	for _, req := range out.Workflows {
		requested = append(requested, req.Name)
	}
	for _, a := range out.Actions {
		in.AppendAction(domain.ActionEntry{
			Action:    a.Action,
			SubAgent:  in.AssignedSubAgent,
			Result:    a.Result,
			Workflows: append([]string(nil), requested...),
		})
	}
	o.timeline(ctx, in.ID, domain.StageProcessed, in.AssignedSubAgent, "", out.Error, out.Summary)
	o.save(ctx, in)

	// Workflow failures are recorded but never change the outcome.
	for _, req := range out.Workflows {
		target := req.WorkflowID
		if target == "" {
			target = req.Name
		}
		tr := o.trigger.Trigger(ctx, target, req.Data)
		run := tr.Run(req.Name)
		in.RecordWorkflow(run)
		o.timeline(ctx, in.ID, domain.StageWorkflow, in.AssignedSubAgent, req.Name, string(run.Status), run)
	}

	if !out.Success {
		in.Error = &domain.InteractionError{Type: string(domain.ErrorTypeSubAgent), Message: out.Error}
		o.transition(in, domain.InteractionStatusFailed)
		o.save(ctx, in)
		o.publish(ctx, in.ID, domain.LifecycleEventFailed, domain.LifecycleFailedData{Error: in.Error})
		return o.finish(ctx, in, out)
	}

	o.transition(in, domain.InteractionStatusCompleted)
	o.save(ctx, in)
	o.publish(ctx, in.ID, domain.LifecycleEventCompleted, domain.LifecycleCompletedData{
		SubAgent:  in.AssignedSubAgent,
		Workflows: len(in.Workflows),
		Duration:  in.ProcessingTime,
	})
	return o.finish(ctx, in, out)
}

// policies returns the sub-agents consulted for escalation: the one the
// verdict routes to, then the one owning the event type when they differ.
// The second keeps type-specific rules such as escrow disputes in force when
// the oracle picks an unexpected intent.
func (o *Orchestrator) policies(ev *domain.Event, selected agents.Agent) []escalation.Policy {
	var out []escalation.Policy
	if selected != nil {
		out = append(out, selected)
	}
	owner, err := o.router.Select(classifier.FallbackIntent(ev.Type))
	if err == nil && (selected == nil || owner.Name() != selected.Name()) {
		out = append(out, owner)
	}
	return out
}

// process invokes the sub-agent exactly once, turning panics into errors.
func (o *Orchestrator) process(ctx context.Context, agent agents.Agent, in *domain.Interaction, ev *domain.Event) (out *agents.Result, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "agents.Process",
		trace.WithAttributes(attribute.String("agent", string(agent.Name()))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			var perr *domain.SubAgentProcessingError
			if !errors.As(err, &perr) {
				err = &domain.SubAgentProcessingError{Agent: string(agent.Name()), Err: err}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	out, err = agent.Process(ctx, in.Clone(), ev)
	if err == nil && out == nil {
		err = errors.New("sub-agent returned no result")
	}
	return out, err
}

// escalate marks the interaction escalated and notifies operators. When
// sideEffect is set the status is left alone; the interaction has already
// failed and only the escalation metadata and notification are added.
func (o *Orchestrator) escalate(ctx context.Context, in *domain.Interaction, d domain.EscalationDecision, sideEffect bool) {
	in.MarkEscalated(d.Reason, d.Priority)
	if !sideEffect {
		o.transition(in, domain.InteractionStatusEscalated)
	}
	o.save(ctx, in)

	o.logger.Info("interaction escalated",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(in.Event.Type)),
		slog.String("reason", d.Reason),
		slog.String("priority", string(d.Priority)),
		slog.Bool("critical_failure", sideEffect),
	)
	o.metrics.IncEscalation(string(d.Priority))

	if err := o.notifier.NotifyEscalation(ctx, in.Clone()); err != nil {
		o.logger.Error("escalation notification failed",
			slog.String("interaction_id", in.ID),
			slog.String("error", err.Error()),
		)
	}

	data := domain.LifecycleEscalatedData{
		EventType: in.Event.Type,
		Reason:    d.Reason,
		Priority:  d.Priority,
		Critical:  sideEffect,
	}
	if in.Classification != nil {
		data.Intent = in.Classification.Intent
	}
	o.publish(ctx, in.ID, domain.LifecycleEventEscalated, data)
}

// fail moves the interaction to failed. Critical errors also escalate.
func (o *Orchestrator) fail(ctx context.Context, in *domain.Interaction, errType domain.ErrorType, err error, stack string) {
	o.logger.Error("interaction failed",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(in.Event.Type)),
		slog.String("error_type", string(errType)),
		slog.String("error", err.Error()),
	)

	if ferr := in.Fail(string(errType), err); ferr != nil {
		o.logger.Error("cannot fail interaction", slog.String("interaction_id", in.ID), slog.String("error", ferr.Error()))
	}
	in.Error.Stack = stack
	o.save(ctx, in)
	o.publish(ctx, in.ID, domain.LifecycleEventFailed, domain.LifecycleFailedData{Error: in.Error})

	if domain.IsCritical(err) {
		o.escalate(ctx, in, domain.Escalate("critical error: "+err.Error(), domain.PriorityCritical), true)
	}
}

func (o *Orchestrator) transition(in *domain.Interaction, next domain.InteractionStatus) {
	if err := in.Transition(next); err != nil {
		o.logger.Error("invalid status transition",
			slog.String("interaction_id", in.ID),
			slog.String("error", err.Error()),
		)
	}
}

// save persists in. The pipeline is the only writer until the interaction
// is escalated, so a failed write is logged and the run continues.
func (o *Orchestrator) save(ctx context.Context, in *domain.Interaction) {
	if err := o.store.UpdateInteraction(ctx, in); err != nil {
		o.logger.Error("failed to persist interaction",
			slog.String("interaction_id", in.ID),
			slog.String("status", string(in.Status)),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) timeline(ctx context.Context, id string, stage domain.Stage, subAgent, workflowName, message string, meta any) {
	ev := &domain.InteractionEvent{
		ID:            uuid.NewString(),
		InteractionID: id,
		Stage:         stage,
		SubAgent:      subAgent,
		Workflow:      workflowName,
		Message:       message,
		CreatedAt:     time.Now().UTC(),
	}
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			ev.Metadata = b
		}
	}
	if err := o.store.AppendInteractionEvent(ctx, ev); err != nil {
		o.logger.Warn("failed to append interaction event",
			slog.String("interaction_id", id),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) publish(ctx context.Context, id string, t domain.LifecycleEventType, data any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, &domain.LifecycleEvent{
		Type:          t,
		InteractionID: id,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}); err != nil {
		o.logger.Warn("failed to publish lifecycle event",
			slog.String("interaction_id", id),
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) finish(ctx context.Context, in *domain.Interaction, out *agents.Result) *ProcessingResult {
	r := newResult(in)
	if out != nil {
		r.Actions = out.Actions
		r.Summary = out.Summary
	}
	o.logger.Info("event processed",
		slog.String("interaction_id", in.ID),
		slog.String("event_type", string(in.Event.Type)),
		slog.String("status", string(in.Status)),
		slog.String("sub_agent", in.AssignedSubAgent),
		slog.Int("workflows", len(in.Workflows)),
		slog.Duration("processing_time", in.ProcessingTime),
	)
	return r
}
