// Package orchestrator provides the public API for embedding the automation
// orchestrator. This is the stable API for external consumers.
package orchestrator

import (
	"github.com/tjfontaine/automation-orchestrator/internal/runtime"
)

// App is a fully wired orchestrator process.
// See internal/runtime.App for full documentation.
type App = runtime.App

// Option is a functional option for configuring an App.
type Option = runtime.Option

// New creates a new App with the given options.
// Example:
//
//	app, err := orchestrator.New(
//	    orchestrator.WithFileConfig("config.yaml"),
//	    orchestrator.WithSQLite("./data/orchestrator.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithMemoryStorage = runtime.WithMemoryStorage
	WithSQLite        = runtime.WithSQLite
	WithPostgres      = runtime.WithPostgres
	WithStore         = runtime.WithStore

	// Integrations
	WithCompletionClient = runtime.WithCompletionClient
	WithWorkflowEngine   = runtime.WithWorkflowEngine
	WithEventPublisher   = runtime.WithEventPublisher

	// Advanced options
	WithLogger            = runtime.WithLogger
	WithMetricsRegisterer = runtime.WithMetricsRegisterer
)
