// Package classifier turns events into classification verdicts using a
// text-completion oracle, falling back to a static lookup table whenever the
// oracle cannot provide a usable verdict.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
	"github.com/tjfontaine/automation-orchestrator/internal/tokens"
)

const (
	DefaultTimeout     = 20 * time.Second
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 500
)

// ErrRateLimited is returned internally when the limiter rejects a call.
var ErrRateLimited = errors.New("classification rate limit exceeded")

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each oracle call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSampling sets the temperature and max output tokens requested.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(c *Classifier) {
		c.temperature = temperature
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithRateLimit caps oracle calls per second. A zero rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Classifier) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithPromptBudget truncates the serialized event payload to maxTokens
// tokens of model's encoding.
func WithPromptBudget(model string, maxTokens int) Option {
	return func(c *Classifier) {
		if maxTokens > 0 {
			c.budget = tokens.NewBudget(model)
			c.maxPromptTokens = maxTokens
		}
	}
}

// WithMetrics records verdict origins.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// Classifier produces a Verdict for every event. Classify never fails.
type Classifier struct {
	client          ports.CompletionClient
	logger          *slog.Logger
	timeout         time.Duration
	temperature     float64
	maxTokens       int
	limiter         *rate.Limiter
	budget          *tokens.Budget
	maxPromptTokens int
	metrics         *telemetry.Metrics
}

// New creates a classifier. A nil client always yields fallback verdicts.
func New(client ports.CompletionClient, opts ...Option) *Classifier {
	c := &Classifier{
		client:      client,
		logger:      slog.Default(),
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the oracle's verdict for ev, or the fallback verdict when
// the oracle cannot provide a usable one.
func (c *Classifier) Classify(ctx context.Context, ev *domain.Event) domain.Verdict {
	ctx, span := telemetry.Tracer().Start(ctx, "classifier.Classify")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", string(ev.Type)))

	v, err := c.classify(ctx, ev)
	if err != nil {
		cerr := &domain.ClassificationError{EventID: ev.ID, Err: err}
		span.RecordError(cerr)
		span.SetStatus(codes.Error, "fallback")
		c.logger.Warn("classification fell back to lookup table",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		v = Fallback(ev)
	}

	span.SetAttributes(
		attribute.String("verdict.intent", string(v.Intent)),
		attribute.Bool("verdict.fallback", v.Fallback),
	)
	c.metrics.IncClassification(string(v.Intent), v.Fallback)
	return v
}

func (c *Classifier) classify(ctx context.Context, ev *domain.Event) (domain.Verdict, error) {
	if c.client == nil {
		return domain.Verdict{}, errors.New("no completion client configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Verdict{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	prompt, err := c.buildPrompt(ev)
	if err != nil {
		return domain.Verdict{}, err
	}

	resp, err := c.client.Complete(ctx, &ports.CompletionRequest{
		SystemInstruction: systemInstruction,
		Prompt:            prompt,
		Temperature:       c.temperature,
		MaxTokens:         c.maxTokens,
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("complete: %w", err)
	}

	return ParseVerdict(resp.Content)
}

type promptEvent struct {
	Type    domain.EventType    `json:"type"`
	Source  domain.EventSource  `json:"source"`
	Data    json.RawMessage     `json:"data"`
	Context domain.EventContext `json:"context"`
}

func (c *Classifier) buildPrompt(ev *domain.Event) (string, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}

	if c.budget != nil {
		text, cut, err := c.budget.Truncate(string(data), c.maxPromptTokens)
		if err != nil {
			c.logger.Debug("prompt budget unavailable", slog.String("error", err.Error()))
		} else if cut {
			// Truncated JSON is no longer valid; embed it as a string.
			quoted, _ := json.Marshal(text + "...")
			data = quoted
		}
	}

	body, err := json.MarshalIndent(promptEvent{
		Type:    ev.Type,
		Source:  ev.Source,
		Data:    data,
		Context: ev.Context,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return "Classify this event:\n" + string(body), nil
}
