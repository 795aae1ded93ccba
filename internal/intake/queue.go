// Package intake is the asynchronous entry path for passive event sources.
//
// Adapters record each event as a pending interaction and push it onto an
// in-process FIFO Queue. A single consumer goroutine pops one interaction
// at a time and hands it to the orchestrator.
//
// Delivery is at most once. An item is removed from the queue before it is
// processed and is never retried. The queue lives only in memory: anything
// still queued when the process stops is lost, although its pending
// interaction remains in the ledger.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/orchestrator"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
)

// ErrQueueFull is returned by Enqueue when the buffer limit is reached.
var ErrQueueFull = errors.New("intake queue full")

// Processor runs a pending interaction through the pipeline. Implemented by
// *orchestrator.Orchestrator.
type Processor interface {
	ProcessAccepted(ctx context.Context, in *domain.Interaction) (*orchestrator.ProcessingResult, error)
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithLimit bounds the number of queued items. Zero means unbounded.
func WithLimit(n int) Option {
	return func(q *Queue) {
		q.limit = n
	}
}

// WithMetrics reports queue depth.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// Queue is a FIFO of pending interactions with one consumer.
//
// The wake channel (capacity 1) signals the consumer when an item is
// pushed. All methods may be called concurrently.
type Queue struct {
	proc    Processor
	logger  *slog.Logger
	metrics *telemetry.Metrics
	limit   int

	mu      sync.Mutex
	items   []*domain.Interaction
	wake    chan struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a stopped queue feeding proc.
func NewQueue(proc Processor, opts ...Option) *Queue {
	q := &Queue{
		proc:   proc,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends in. It does not wait for processing.
func (q *Queue) Enqueue(in *domain.Interaction) error {
	q.mu.Lock()
	if q.limit > 0 && len(q.items) >= q.limit {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, in)
	n := len(q.items)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Start launches the consumer. Calling Start on a running queue logs a
// warning and does nothing.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		q.logger.Warn("intake queue already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.running = true
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.consume(ctx, q.done)

	q.logger.Info("intake queue started", slog.Int("queued", len(q.items)))
}

// Stop halts the consumer after the item in flight, if any, finishes.
// Remaining items stay queued.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel, done := q.cancel, q.done
	q.running = false
	q.mu.Unlock()

	cancel()
	<-done
	q.logger.Info("intake queue stopped", slog.Int("remaining", q.Len()))
}

func (q *Queue) consume(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		in, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.process(ctx, in)
	}
}

func (q *Queue) pop() (*domain.Interaction, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	in := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	n := len(q.items)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
	return in, true
}

func (q *Queue) process(ctx context.Context, in *domain.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("intake processing panic",
				slog.String("interaction_id", in.ID),
				slog.Any("panic", r),
			)
		}
	}()

	res, err := q.proc.ProcessAccepted(context.WithoutCancel(ctx), in)
	if err != nil {
		q.logger.Error("failed to process queued event",
			slog.String("interaction_id", in.ID),
			slog.String("event_type", string(in.Event.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	q.logger.Debug("queued event processed",
		slog.String("interaction_id", in.ID),
		slog.String("status", string(res.Status)),
	)
}
