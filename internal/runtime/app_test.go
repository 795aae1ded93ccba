package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/memory"
)

type staticConfig struct {
	cfg *config.Config
}

func (s *staticConfig) Load(ctx context.Context) (*config.Config, error) { return s.cfg, nil }
func (s *staticConfig) Watch(ctx context.Context, onChange func(*config.Config)) error {
	return nil
}
func (s *staticConfig) Close() error { return nil }

type countingEngine struct {
	mu    sync.Mutex
	calls []string
}

func (e *countingEngine) Execute(ctx context.Context, workflowID string, payload map[string]any) (*ports.WorkflowExecution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, workflowID)
	return &ports.WorkflowExecution{ExecutionID: "exec-1"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 0, RequestTimeout: 5 * time.Second},
		Storage: config.StorageConfig{Type: "memory"},
		Workflow: config.WorkflowConfig{
			Registry: map[string]string{"booking-reminders": "AbCdEfGh12345678"},
		},
		Escalation: config.EscalationConfig{
			BookingCancellationThreshold: 1000,
			PaymentFailureThreshold:      5000,
		},
		Intake:    config.IntakeConfig{Enabled: true, Buffer: 10},
		Telemetry: config.TelemetryConfig{Metrics: true},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfigProvider(&staticConfig{cfg: cfg}),
		WithStore(memory.New()),
		WithMetricsRegisterer(prometheus.NewRegistry()),
	}
	app, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("New() error = nil, want config provider error")
	}
}

func TestApp_Start_WiresPipeline(t *testing.T) {
	engine := &countingEngine{}
	app := newTestApp(t, testConfig(), WithWorkflowEngine(engine))

	res, err := app.Orchestrator().SubmitEvent(context.Background(), domain.RawEvent{
		Type:   "booking_created",
		Source: "app",
		Data:   map[string]any{"bookingId": "b-1", "userId": "u-1"},
	})
	if err != nil {
		t.Fatalf("SubmitEvent() error = %v", err)
	}
	if res.Status != domain.InteractionStatusCompleted {
		t.Errorf("Status = %s, want completed (error %q)", res.Status, res.Error)
	}
	if len(engine.calls) != 1 || engine.calls[0] != "AbCdEfGh12345678" {
		t.Errorf("engine calls = %v, want resolved booking-reminders ID", engine.calls)
	}
}

func TestApp_Handler_ServesControlPlane(t *testing.T) {
	app := newTestApp(t, testConfig())

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/stats", http.StatusOK},
		{"/api/interactions/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestApp_IntakeDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Intake.Enabled = false
	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sources/app", strings.NewReader(`{"type":"booking_created"}`))
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/sources/app = %d, want route absent", rec.Code)
	}
}

func TestApp_Reload(t *testing.T) {
	app := newTestApp(t, testConfig())

	next := testConfig()
	next.Escalation.PaymentFailureThreshold = 100
	next.Workflow.Registry = map[string]string{"payment-retry": "ZyXwVuTs87654321"}
	next.Escalation.Rules = []config.RuleConfig{
		{Name: "mpesa", Expression: `event.type == "payment_failed"`, Reason: "mpesa", Priority: "high"},
	}

	if err := app.reload(next); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := app.agents.Thresholds().PaymentFailure; got != 100 {
		t.Errorf("PaymentFailure = %v, want 100", got)
	}
	if _, ok := app.workflows.Resolve("booking-reminders"); ok {
		t.Error("booking-reminders still registered after reload")
	}
	if id, ok := app.workflows.Resolve("payment-retry"); !ok || id != "ZyXwVuTs87654321" {
		t.Errorf("Resolve(payment-retry) = %q, %v", id, ok)
	}
}

func TestApp_Reload_BadRuleKeepsPrevious(t *testing.T) {
	app := newTestApp(t, testConfig())

	next := testConfig()
	next.Escalation.PaymentFailureThreshold = 1
	next.Escalation.Rules = []config.RuleConfig{{Name: "broken", Expression: "event.type =="}}

	if err := app.reload(next); err == nil {
		t.Fatal("reload() error = nil, want compile error")
	}
	if got := app.agents.Thresholds().PaymentFailure; got != 5000 {
		t.Errorf("PaymentFailure = %v, want unchanged 5000", got)
	}
}

func TestApp_Start_InvalidRule(t *testing.T) {
	cfg := testConfig()
	cfg.Escalation.Rules = []config.RuleConfig{{Name: "broken", Expression: "verdict.confidence <"}}

	app, err := New(
		WithConfigProvider(&staticConfig{cfg: cfg}),
		WithStore(memory.New()),
		WithMetricsRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want rule compile error")
	}
}

func TestApp_WithFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 0
storage:
  type: memory
escalation:
  booking_cancellation_threshold: 250
workflow:
  registry:
    booking-feedback: QwErTyUiOp123456
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	app, err := New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithFileConfig(path),
		WithMetricsRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer app.Shutdown(context.Background())

	if got := app.agents.Thresholds().BookingCancellation; got != 250 {
		t.Errorf("BookingCancellation = %v, want 250", got)
	}
	if got := app.agents.Thresholds().PaymentFailure; got != 5000 {
		t.Errorf("PaymentFailure = %v, want default 5000", got)
	}
	if _, ok := app.workflows.Resolve("booking-feedback"); !ok {
		t.Error("booking-feedback not registered from file")
	}
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	app := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
