package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
)

// GetInteraction returns one interaction from the ledger.
func (o *Orchestrator) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	return o.store.GetInteraction(ctx, id)
}

// ListInteractions returns interaction summaries newest first.
func (o *Orchestrator) ListInteractions(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error) {
	return o.store.ListInteractions(ctx, filter, page.Normalize())
}

// ListEscalated returns interactions waiting on a human, newest first.
// It matches on the escalation flag rather than the status, so failed
// interactions escalated by a critical error are listed alongside escalated
// ones. Resolved interactions keep the flag and are included.
func (o *Orchestrator) ListEscalated(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error) {
	escalated := true
	filter.Escalated = &escalated
	return o.store.ListInteractions(ctx, filter, page.Normalize())
}

// GetAnalytics aggregates the ledger over r.
func (o *Orchestrator) GetAnalytics(ctx context.Context, r ports.TimeRange) (*domain.Analytics, error) {
	return o.store.Analytics(ctx, r)
}

// InteractionEvents returns the timeline of an interaction.
func (o *Orchestrator) InteractionEvents(ctx context.Context, id string) ([]*domain.InteractionEvent, error) {
	if _, err := o.store.GetInteraction(ctx, id); err != nil {
		return nil, err
	}
	return o.store.ListInteractionEvents(ctx, id)
}

// AssignEscalation records operator as the owner of an escalated
// interaction, including a failed one escalated by a critical error.
func (o *Orchestrator) AssignEscalation(ctx context.Context, id, operator string) (*domain.Interaction, error) {
	in, err := o.mutate(ctx, id, func(in *domain.Interaction) error {
		return in.Assign(operator)
	})
	if err != nil {
		return nil, err
	}
	o.timeline(ctx, id, domain.StageAssigned, in.AssignedSubAgent, "", operator, nil)
	o.logger.Info("escalation assigned",
		slog.String("interaction_id", id),
		slog.String("assignee", operator),
	)
	return in, nil
}

// ResolveEscalation closes an escalated interaction. The status is left
// as is; the resolution is recorded in the escalation metadata.
func (o *Orchestrator) ResolveEscalation(ctx context.Context, id, operator, notes string) (*domain.Interaction, error) {
	in, err := o.mutate(ctx, id, func(in *domain.Interaction) error {
		return in.Resolve(operator, notes)
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, id, domain.LifecycleEventResolved, domain.LifecycleResolvedData{
		ResolvedBy: operator,
		Notes:      notes,
	})
	o.logger.Info("escalation resolved",
		slog.String("interaction_id", id),
		slog.String("resolved_by", operator),
	)
	return in, nil
}

// mutate applies fn to the stored interaction and writes it back. A version
// conflict re-reads and retries once; a second conflict is returned.
func (o *Orchestrator) mutate(ctx context.Context, id string, fn func(*domain.Interaction) error) (*domain.Interaction, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var in *domain.Interaction
		in, err = o.store.GetInteraction(ctx, id)
		if err != nil {
			return nil, err
		}
		if err = fn(in); err != nil {
			return nil, err
		}
		err = o.store.UpdateInteraction(ctx, in)
		if err == nil {
			return in, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("update interaction %s: %w", id, err)
		}
		o.logger.Warn("interaction modified concurrently, retrying",
			slog.String("interaction_id", id),
			slog.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("update interaction %s: %w", id, err)
}
