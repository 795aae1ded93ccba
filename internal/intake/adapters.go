package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// Accepter records a pending interaction and withdraws it when it cannot
// be queued. Implemented by *orchestrator.Orchestrator.
type Accepter interface {
	Accept(ctx context.Context, raw domain.RawEvent) (*domain.Interaction, error)
	Cancel(ctx context.Context, in *domain.Interaction, reason error) error
}

// Payload is what a passive source delivers. Type may be left empty for
// sources that only ever emit one kind of event.
type Payload struct {
	Type    string               `json:"type,omitempty"`
	Data    map[string]any       `json:"data,omitempty"`
	Context *domain.EventContext `json:"context,omitempty"`
}

// Adapters normalize passive source payloads into events and enqueue them.
type Adapters struct {
	accepter Accepter
	queue    *Queue
	logger   *slog.Logger
}

// NewAdapters creates the source adapters.
func NewAdapters(accepter Accepter, queue *Queue, logger *slog.Logger) *Adapters {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapters{accepter: accepter, queue: queue, logger: logger}
}

// OnAppEvent accepts an event from the customer or provider apps.
func (a *Adapters) OnAppEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourceApp, p, "")
}

// OnPosEvent accepts a point-of-sale event.
func (a *Adapters) OnPosEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourcePOS, p, domain.EventPOSTransaction)
}

// OnPaymentEvent accepts a payment gateway notification.
func (a *Adapters) OnPaymentEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourcePayments, p, "")
}

// OnGpsEvent accepts a location ping.
func (a *Adapters) OnGpsEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourceGPS, p, domain.EventGPSLocation)
}

// OnCrmEvent accepts a CRM change notification.
func (a *Adapters) OnCrmEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourceCRM, p, domain.EventCRMUpdate)
}

// OnWebhookEvent accepts an event from a generic inbound webhook.
func (a *Adapters) OnWebhookEvent(ctx context.Context, p Payload) (*domain.Interaction, error) {
	return a.enqueue(ctx, domain.SourceWebhook, p, "")
}

func (a *Adapters) enqueue(ctx context.Context, source domain.EventSource, p Payload, defaultType domain.EventType) (*domain.Interaction, error) {
	eventType := p.Type
	if eventType == "" {
		eventType = string(defaultType)
	}

	in, err := a.accepter.Accept(ctx, domain.RawEvent{
		Type:    eventType,
		Source:  string(source),
		Data:    p.Data,
		Context: p.Context,
	})
	if err != nil {
		return nil, err
	}

	if err := a.queue.Enqueue(in); err != nil {
		a.logger.Error("failed to enqueue event",
			slog.String("interaction_id", in.ID),
			slog.String("source", string(source)),
			slog.String("error", err.Error()),
		)
		// No consumer will ever see it, so it must not stay pending.
		if cerr := a.accepter.Cancel(context.WithoutCancel(ctx), in, err); cerr != nil {
			a.logger.Error("failed to cancel unqueued interaction",
				slog.String("interaction_id", in.ID),
				slog.String("error", cerr.Error()),
			)
		}
		return nil, fmt.Errorf("enqueue %s: %w", in.ID, err)
	}
	return in, nil
}
