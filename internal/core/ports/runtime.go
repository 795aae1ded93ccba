package ports

import (
	"context"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// EventPublisher publishes interaction lifecycle events.
// Implementations: direct dispatch to in-process subscribers (default).
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LifecycleEvent) error
	Close() error
}

// Notifier delivers escalation notifications to humans.
// Implementations: log (default), workflow-backed.
type Notifier interface {
	NotifyEscalation(ctx context.Context, interaction *domain.Interaction) error
}

// CompletionClient is the text-completion oracle used for classification.
type CompletionClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single-turn completion call.
type CompletionRequest struct {
	SystemInstruction string
	Prompt            string
	Temperature       float64
	MaxTokens         int
}

// CompletionResponse is the oracle's raw text answer.
type CompletionResponse struct {
	Content string
	Model   string
}

// WorkflowEngine starts external automation workflows by ID.
type WorkflowEngine interface {
	Execute(ctx context.Context, workflowID string, payload map[string]any) (*WorkflowExecution, error)
}

// WorkflowExecution is the engine's acknowledgement of a started workflow.
type WorkflowExecution struct {
	ExecutionID string         `json:"execution_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}
