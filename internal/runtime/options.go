package runtime

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/automation-orchestrator/internal/adapters/config/file"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/automation-orchestrator/internal/storage"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithFileConfig uses file-based configuration with hot-reload.
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(a *App) error {
		provider, err := file.NewProvider(path, a.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		a.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(a *App) error {
		a.config = provider
		return nil
	}
}

// WithLogger sets a custom logger. Pass it before WithFileConfig so the
// config provider logs through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// WithStore overrides the configured Interaction ledger.
func WithStore(store ports.InteractionStore) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithEventPublisher overrides the lifecycle event publisher. The default
// writes lifecycle events to the ledger timeline.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(a *App) error {
		a.events = publisher
		return nil
	}
}

// WithCompletionClient overrides the classification oracle.
func WithCompletionClient(client ports.CompletionClient) Option {
	return func(a *App) error {
		a.completion = client
		return nil
	}
}

// WithWorkflowEngine overrides the workflow engine.
func WithWorkflowEngine(engine ports.WorkflowEngine) Option {
	return func(a *App) error {
		a.engine = engine
		return nil
	}
}

// WithMetricsRegisterer registers metrics with reg instead of the global
// Prometheus registry.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) error {
		a.registerer = reg
		return nil
	}
}

// WithMemoryStorage keeps the ledger in process memory.
func WithMemoryStorage() Option {
	return withStorage(config.StorageConfig{Type: "memory"})
}

// WithSQLite stores the ledger in a SQLite database file.
func WithSQLite(path string) Option {
	return withStorage(config.StorageConfig{
		Type:     "sqlite",
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: path},
	})
}

// WithPostgres stores the ledger in PostgreSQL.
func WithPostgres(dsn string) Option {
	return withStorage(config.StorageConfig{
		Type:     "postgres",
		Database: config.DatabaseConfig{Driver: "postgres", DSN: dsn},
	})
}

func withStorage(cfg config.StorageConfig) Option {
	return func(a *App) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("create %s storage: %w", cfg.Type, err)
		}
		a.store = store
		return nil
	}
}
