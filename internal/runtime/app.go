// Package runtime assembles the orchestrator from configuration and manages
// its lifecycle: HTTP server, intake consumer and config hot-reload.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/automation-orchestrator/internal/adapters/events/direct"
	"github.com/tjfontaine/automation-orchestrator/internal/adapters/notify"
	"github.com/tjfontaine/automation-orchestrator/internal/agents"
	"github.com/tjfontaine/automation-orchestrator/internal/api/controlplane"
	"github.com/tjfontaine/automation-orchestrator/internal/classifier"
	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/escalation"
	"github.com/tjfontaine/automation-orchestrator/internal/intake"
	"github.com/tjfontaine/automation-orchestrator/internal/llm"
	"github.com/tjfontaine/automation-orchestrator/internal/orchestrator"
	"github.com/tjfontaine/automation-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/automation-orchestrator/internal/server"
	"github.com/tjfontaine/automation-orchestrator/internal/storage"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
	"github.com/tjfontaine/automation-orchestrator/internal/workflow"
)

// App is a fully wired orchestrator process. It can be embedded in a
// larger program or run standalone from cmd/orchestrator.
type App struct {
	// Dependencies (injected via options)
	config     ports.ConfigProvider
	store      ports.InteractionStore
	events     ports.EventPublisher
	completion ports.CompletionClient
	engine     ports.WorkflowEngine
	registerer prometheus.Registerer
	logger     *slog.Logger

	// Built by Start
	cfg       *config.Config
	metrics   *telemetry.Metrics
	agents    *agents.Registry
	evaluator *escalation.Evaluator
	workflows *workflow.Registry
	orch      *orchestrator.Orchestrator
	queue     *intake.Queue
	server    *server.Server

	shutdownTracer func(context.Context) error

	mu sync.Mutex
}

// New creates an App with the given options. A config provider is required;
// everything else is derived from the loaded configuration.
func New(opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if a.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	return a, nil
}

// Orchestrator returns the wired orchestrator. Nil before Start.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orch
}

// Handler returns the HTTP handler. Nil before Start.
func (a *App) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	return a.server.Router
}

// Start loads configuration and builds every component without serving.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg, err := a.config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer("automation-orchestrator", a.logger,
			telemetry.WithSampleRatio(cfg.Telemetry.SampleRatio),
		)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		a.shutdownTracer = shutdown
	}

	if err := a.build(cfg); err != nil {
		return err
	}

	a.logger.Info("orchestrator started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("oracle", a.completion != nil),
		slog.Bool("workflow_engine", a.engine != nil),
		slog.Bool("intake", a.queue != nil),
		slog.Int("workflows", len(cfg.Workflow.Registry)),
	)
	return nil
}

// Run starts the App if needed, then serves HTTP and drains the intake
// queue until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a.Orchestrator() == nil {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.queue != nil {
		a.queue.Start(gctx)
	}

	g.Go(func() error {
		return a.server.Run(gctx)
	})

	g.Go(func() error {
		err := a.config.Watch(gctx, func(cfg *config.Config) {
			a.logger.Info("config changed, reloading")
			if err := a.reload(cfg); err != nil {
				a.logger.Error("failed to reload", slog.String("error", err.Error()))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("config watch unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	if a.queue != nil {
		a.queue.Stop()
	}
	return err
}

// Shutdown releases storage, the publisher and the config watcher.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down orchestrator")

	if a.queue != nil {
		a.queue.Stop()
		if n := a.queue.Len(); n > 0 {
			a.logger.Warn("intake queue not drained", slog.Int("remaining", n))
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("failed to close events", slog.String("error", err.Error()))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}
	if err := a.config.Close(); err != nil {
		a.logger.Error("failed to close config", slog.String("error", err.Error()))
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("orchestrator shutdown complete")
	return nil
}

func (a *App) build(cfg *config.Config) error {
	var err error
	if a.store == nil {
		if a.store, err = storage.New(cfg.Storage); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
	}
	if a.events == nil {
		if a.events, err = direct.NewPublisher(a.store, a.logger); err != nil {
			return fmt.Errorf("init event publisher: %w", err)
		}
	}

	if cfg.Telemetry.Metrics {
		if a.registerer != nil {
			a.metrics = telemetry.MustNewMetrics(a.registerer)
		} else {
			a.metrics = telemetry.DefaultMetrics()
		}
	}

	if a.completion == nil && cfg.Classifier.APIKey != "" {
		a.completion = llm.NewClient(cfg.Classifier.APIKey,
			llm.WithBaseURL(cfg.Classifier.BaseURL),
			llm.WithModel(cfg.Classifier.Model),
		)
	}
	if a.completion == nil {
		a.logger.Warn("no classification oracle configured, using fallback table only")
	}
	clf := classifier.New(a.completion,
		classifier.WithLogger(a.logger),
		classifier.WithTimeout(cfg.Classifier.Timeout),
		classifier.WithSampling(cfg.Classifier.Temperature, cfg.Classifier.MaxTokens),
		classifier.WithRateLimit(cfg.Classifier.RatePerSecond, cfg.Classifier.Burst),
		classifier.WithPromptBudget(cfg.Classifier.Model, cfg.Classifier.MaxPromptTokens),
		classifier.WithMetrics(a.metrics),
	)

	rules, err := ruleSet(cfg.Escalation.Rules)
	if err != nil {
		return fmt.Errorf("init escalation rules: %w", err)
	}
	a.evaluator = escalation.New(escalation.WithLogger(a.logger), escalation.WithRules(rules))

	a.agents = agents.NewRegistry(
		agents.WithLogger(a.logger),
		agents.WithThresholds(thresholds(cfg.Escalation)),
	)

	a.workflows = workflow.NewRegistry(cfg.Workflow.Registry)
	if a.engine == nil && cfg.Workflow.BaseURL != "" {
		a.engine = workflow.NewHTTPEngine(workflow.HTTPEngineConfig{
			BaseURL:      cfg.Workflow.BaseURL,
			Path:         cfg.Workflow.Path,
			APIKey:       cfg.Workflow.APIKey,
			APIKeyHeader: cfg.Workflow.APIKeyHeader,
			Timeout:      cfg.Workflow.Timeout,
			Retries:      cfg.Workflow.Retries,
		})
	}
	if a.engine == nil {
		a.logger.Warn("no workflow engine configured, workflow triggers will fail")
	}
	executor := workflow.NewExecutor(a.engine, a.workflows,
		workflow.WithLogger(a.logger),
		workflow.WithMetrics(a.metrics),
	)

	var notifier ports.Notifier = notify.NewLogNotifier(a.logger)
	if name := cfg.Escalation.NotifyWorkflow; name != "" {
		notifier = notify.NewWorkflowNotifier(executor, name, a.logger)
	}

	a.orch, err = orchestrator.New(a.store,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithClassifier(clf),
		orchestrator.WithEvaluator(a.evaluator),
		orchestrator.WithRouter(agents.NewRouter(a.agents)),
		orchestrator.WithTrigger(executor),
		orchestrator.WithNotifier(notifier),
		orchestrator.WithPublisher(a.events),
		orchestrator.WithMetrics(a.metrics),
	)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	var cpOpts []controlplane.Option
	if cfg.Intake.Enabled {
		a.queue = intake.NewQueue(a.orch,
			intake.WithLogger(a.logger),
			intake.WithLimit(cfg.Intake.Buffer),
			intake.WithMetrics(a.metrics),
		)
		cpOpts = append(cpOpts, controlplane.WithIntake(intake.NewAdapters(a.orch, a.queue, a.logger), a.queue))
	}
	if a.metrics != nil {
		cpOpts = append(cpOpts, controlplane.WithMetricsHandler(a.metrics.Handler()))
	}

	a.server = server.New(cfg.Server.Port, cfg.Server.RequestTimeout, a.logger)
	a.server.Router.Mount("/", controlplane.NewServer(a.orch, cpOpts...))
	return nil
}

// reload applies the hot-reloadable settings: escalation thresholds and
// rules, and the workflow registry. Other changes need a restart.
func (a *App) reload(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rules, err := ruleSet(cfg.Escalation.Rules)
	if err != nil {
		return fmt.Errorf("escalation rules: %w", err)
	}
	a.evaluator.SetRules(rules)
	a.agents.SetThresholds(thresholds(cfg.Escalation))
	a.workflows.Replace(cfg.Workflow.Registry)
	a.cfg = cfg

	a.logger.Info("reload complete",
		slog.Int("rules", rules.Len()),
		slog.Int("workflows", len(cfg.Workflow.Registry)),
	)
	return nil
}

func ruleSet(rules []config.RuleConfig) (*escalation.RuleSet, error) {
	out := make([]escalation.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, escalation.Rule{
			Name:       r.Name,
			Expression: r.Expression,
			Reason:     r.Reason,
			Priority:   domain.ParsePriority(r.Priority),
		})
	}
	return escalation.NewRuleSet(out)
}

func thresholds(cfg config.EscalationConfig) agents.Thresholds {
	t := agents.DefaultThresholds()
	if cfg.BookingCancellationThreshold > 0 {
		t.BookingCancellation = cfg.BookingCancellationThreshold
	}
	if cfg.PaymentFailureThreshold > 0 {
		t.PaymentFailure = cfg.PaymentFailureThreshold
	}
	return t
}
