package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPath         = "/api/v1/workflows"
	DefaultAPIKeyHeader = "X-API-Key"

	executionIDHeader = "X-Execution-Id"
)

// HTTPEngineConfig configures an HTTPEngine.
type HTTPEngineConfig struct {
	BaseURL      string
	Path         string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	Retries      int // Extra attempts when the engine is unreachable
	Client       *http.Client
}

// HTTPEngine triggers workflows with a JSON POST to {BaseURL}{Path}/{id}.
type HTTPEngine struct {
	baseURL      string
	path         string
	apiKey       string
	apiKeyHeader string
	retries      int
	client       *http.Client
}

var _ ports.WorkflowEngine = (*HTTPEngine)(nil)

// NewHTTPEngine creates a new workflow engine client.
func NewHTTPEngine(cfg HTTPEngineConfig) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	header := cfg.APIKeyHeader
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &HTTPEngine{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		path:         "/" + strings.Trim(path, "/"),
		apiKey:       cfg.APIKey,
		apiKeyHeader: header,
		retries:      cfg.Retries,
		client:       client,
	}
}

// Execute starts workflowID with payload. Connection failures wrap
// domain.ErrWorkflowUnavailable; non-2xx answers return a
// *domain.WorkflowTriggerError.
func (e *HTTPEngine) Execute(ctx context.Context, workflowID string, payload map[string]any) (*ports.WorkflowExecution, error) {
	var lastErr error

	attempts := e.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		exec, err := e.doRequest(ctx, workflowID, payload)
		if err == nil {
			return exec, nil
		}
		lastErr = err

		// Only an unreachable engine is worth retrying
		if !errors.Is(err, domain.ErrWorkflowUnavailable) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (e *HTTPEngine) doRequest(ctx context.Context, workflowID string, payload map[string]any) (*ports.WorkflowExecution, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	url := e.baseURL + e.path + "/" + workflowID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set(e.apiKeyHeader, e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if isUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrWorkflowUnavailable, err)
		}
		return nil, fmt.Errorf("workflow request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.WorkflowTriggerError{
			Workflow:   workflowID,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	exec := &ports.WorkflowExecution{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		var data map[string]any
		if err := json.Unmarshal(respBody, &data); err == nil {
			exec.Data = data
			exec.ExecutionID = stringField(data, "executionId", "id")
		}
	}
	if exec.ExecutionID == "" {
		exec.ExecutionID = resp.Header.Get(executionIDHeader)
	}
	return exec, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// isUnavailable reports connection refusals, DNS failures and timeouts.
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
