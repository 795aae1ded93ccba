package agents

import (
	"log/slog"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// Option configures a Registry built by NewRegistry.
type Option func(*Registry)

// WithLogger sets the logger handed to every agent.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithThresholds sets the initial escalation limits.
func WithThresholds(t Thresholds) Option {
	return func(r *Registry) {
		r.thresholds.store(t)
	}
}

// WithAgents replaces or adds specific handlers, typically in tests.
func WithAgents(agents ...Agent) Option {
	return func(r *Registry) {
		r.overrides = append(r.overrides, agents...)
	}
}

// WithoutAgent removes a handler from the registry.
func WithoutAgent(name Name) Option {
	return func(r *Registry) {
		r.removed = append(r.removed, name)
	}
}

// Registry maps sub-agent names to handlers. It is built once and not
// mutated afterwards, so lookups need no locking.
type Registry struct {
	agents     map[Name]Agent
	logger     *slog.Logger
	thresholds *thresholdSource
	overrides  []Agent
	removed    []Name
}

// NewRegistry builds the registry with all nine sub-agents.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		agents:     make(map[Name]Agent, len(Names)),
		logger:     slog.Default(),
		thresholds: &thresholdSource{},
	}
	for _, opt := range opts {
		opt(r)
	}

	b := func(n Name) base { return base{name: n, logger: r.logger} }
	for _, a := range []Agent{
		&providerAgent{base: b(ProviderAgent)},
		&bookingAgent{base: b(BookingAgent), thresholds: r.thresholds},
		&paymentAgent{base: b(PaymentAgent), thresholds: r.thresholds},
		&escrowAgent{base: b(EscrowAgent)},
		&supportAgent{base: b(SupportAgent)},
		&operationsAgent{base: b(OperationsAgent)},
		&auditAgent{base: b(AuditAgent)},
		&marketingAgent{base: b(MarketingAgent)},
		&analyticsAgent{base: b(AnalyticsAgent)},
	} {
		r.agents[a.Name()] = a
	}
	for _, a := range r.overrides {
		r.agents[a.Name()] = a
	}
	for _, n := range r.removed {
		delete(r.agents, n)
	}
	return r
}

// Get returns the handler for name.
func (r *Registry) Get(name Name) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return nil, &domain.UnknownSubAgentError{Name: string(name)}
	}
	return a, nil
}

// SetThresholds swaps the escalation limits used by the booking and payment
// agents.
func (r *Registry) SetThresholds(t Thresholds) {
	r.thresholds.store(t)
	r.logger.Info("escalation thresholds updated",
		slog.Float64("booking_cancellation", t.BookingCancellation),
		slog.Float64("payment_failure", t.PaymentFailure),
	)
}

// Thresholds returns the current escalation limits.
func (r *Registry) Thresholds() Thresholds {
	return r.thresholds.load()
}
