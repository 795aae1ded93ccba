// Package direct provides a direct event publisher that writes lifecycle
// events to the interaction timeline and fans them out to in-process
// subscribers.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
)

// Subscriber receives every published lifecycle event.
type Subscriber func(ctx context.Context, event *domain.LifecycleEvent)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	store  ports.InteractionStore
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []Subscriber
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.InteractionStore, logger *slog.Logger) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("interaction store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}, nil
}

// Subscribe registers fn for all future events.
func (p *Publisher) Subscribe(fn Subscriber) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, fn)
	p.mu.Unlock()
}

// Publish appends the event to the interaction timeline, then notifies
// subscribers. Subscribers run even when the write fails.
func (p *Publisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	storageEvent := &domain.InteractionEvent{
		ID:            uuid.NewString(),
		InteractionID: event.InteractionID,
		Stage:         stageFor(event.Type),
		Message:       string(event.Type),
		CreatedAt:     event.Timestamp,
	}
	if event.Data != nil {
		if meta, err := json.Marshal(event.Data); err == nil {
			storageEvent.Metadata = meta
		}
	}

	err := p.store.AppendInteractionEvent(ctx, storageEvent)
	if err != nil {
		p.logger.Error("failed to persist lifecycle event",
			slog.String("interaction_id", event.InteractionID),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}

	p.mu.RLock()
	subs := append([]Subscriber(nil), p.subscribers...)
	p.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, event)
	}
	return err
}

// Close is a no-op for direct publisher.
func (p *Publisher) Close() error {
	return nil
}

func stageFor(t domain.LifecycleEventType) domain.Stage {
	switch t {
	case domain.LifecycleEventStarted:
		return domain.StageReceived
	case domain.LifecycleEventCompleted:
		return domain.StageCompleted
	case domain.LifecycleEventFailed:
		return domain.StageFailed
	case domain.LifecycleEventEscalated:
		return domain.StageEscalated
	case domain.LifecycleEventResolved:
		return domain.StageResolved
	}
	return domain.Stage(t)
}
