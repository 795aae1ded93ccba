package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/telemetry"
)

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(map[string]string{"booking-reminders": "wf-reminders"})

	tests := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"booking-reminders", "wf-reminders", true},
		{"aB3dE5gH7jK9mN1p", "aB3dE5gH7jK9mN1p", true},
		{"aB3dE5gH7jK9mN1", "", false},
		{"aB3dE5gH7jK9mN1p2", "", false},
		{"not-registered", "", false},
	}
	for _, tt := range tests {
		id, ok := r.Resolve(tt.in)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.in, id, ok, tt.wantID, tt.wantOK)
		}
	}

	r.Register("payment-retry", "wf-retry")
	if id, _ := r.Resolve("payment-retry"); id != "wf-retry" {
		t.Errorf("Resolve(payment-retry) after Register = %q", id)
	}

	r.Replace(map[string]string{"crm-sync": "wf-crm"})
	if _, ok := r.Resolve("booking-reminders"); ok {
		t.Error("Replace() kept old entries")
	}
	if got := r.Entries(); len(got) != 1 || got["crm-sync"] != "wf-crm" {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHTTPEngine_Execute(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-N8N-API-KEY")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"executionId":"exec-42","status":"running"}`))
	}))
	defer server.Close()

	e := NewHTTPEngine(HTTPEngineConfig{
		BaseURL:      server.URL + "/",
		Path:         "webhook/",
		APIKey:       "secret",
		APIKeyHeader: "X-N8N-API-KEY",
	})
	exec, err := e.Execute(context.Background(), "wf1", map[string]any{"bookingId": "B1"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if exec.ExecutionID != "exec-42" || exec.Data["status"] != "running" {
		t.Errorf("Execute() = %+v", exec)
	}
	if gotPath != "/webhook/wf1" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotBody["bookingId"] != "B1" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestHTTPEngine_ExecutionIDSources(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   string
	}{
		{"id field", `{"id":"abc"}`, "", "abc"},
		{"numeric id", `{"id":1234}`, "", "1234"},
		{"header", `{"ok":true}`, "hdr-1", "hdr-1"},
		{"empty body header", "", "hdr-2", "hdr-2"},
		{"non json body", "accepted", "hdr-3", "hdr-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("X-Execution-Id", tt.header)
				}
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			exec, err := NewHTTPEngine(HTTPEngineConfig{BaseURL: server.URL}).Execute(context.Background(), "wf", nil)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if exec.ExecutionID != tt.want {
				t.Errorf("ExecutionID = %q, want %q", exec.ExecutionID, tt.want)
			}
		})
	}
}

func TestHTTPEngine_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow is inactive", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPEngine(HTTPEngineConfig{BaseURL: server.URL}).Execute(context.Background(), "wf", nil)
	var trigErr *domain.WorkflowTriggerError
	if !errors.As(err, &trigErr) {
		t.Fatalf("Execute() error = %v, want WorkflowTriggerError", err)
	}
	if trigErr.StatusCode != http.StatusNotFound || !strings.Contains(trigErr.Error(), "inactive") {
		t.Errorf("WorkflowTriggerError = %v", trigErr)
	}
}

func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}

func TestHTTPEngine_ConnectionRefused(t *testing.T) {
	e := NewHTTPEngine(HTTPEngineConfig{BaseURL: closedURL(t), Retries: 2})
	_, err := e.Execute(context.Background(), "wf", nil)
	if !errors.Is(err, domain.ErrWorkflowUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrWorkflowUnavailable", err)
	}
}

func TestHTTPEngine_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	e := NewHTTPEngine(HTTPEngineConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := e.Execute(context.Background(), "wf", nil)
	if !errors.Is(err, domain.ErrWorkflowUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrWorkflowUnavailable", err)
	}
}

func TestHTTPEngine_RetriesUnavailableOnly(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	NewHTTPEngine(HTTPEngineConfig{BaseURL: server.URL, Retries: 3}).Execute(context.Background(), "wf", nil)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

type engineFunc func(ctx context.Context, id string, payload map[string]any) (*ports.WorkflowExecution, error)

func (f engineFunc) Execute(ctx context.Context, id string, payload map[string]any) (*ports.WorkflowExecution, error) {
	return f(ctx, id, payload)
}

func TestExecutor_Trigger(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.MustNewMetrics(reg)

	var gotID string
	engine := engineFunc(func(_ context.Context, id string, _ map[string]any) (*ports.WorkflowExecution, error) {
		gotID = id
		return &ports.WorkflowExecution{ExecutionID: "x1", Data: map[string]any{"ok": true}}, nil
	})
	x := NewExecutor(engine, NewRegistry(map[string]string{"booking-reminders": "wf-rem"}), WithMetrics(m))

	res := x.Trigger(context.Background(), "booking-reminders", nil)
	if !res.Success || res.ExecutionID != "x1" || res.WorkflowID != "wf-rem" || gotID != "wf-rem" {
		t.Errorf("Trigger() = %+v", res)
	}
	if res.StartedAt.IsZero() || res.FinishedAt.Before(res.StartedAt) {
		t.Errorf("timestamps = %v / %v", res.StartedAt, res.FinishedAt)
	}

	run := res.Run("booking-reminders")
	if run.Status != domain.WorkflowRunSuccess || run.FinishedAt == nil || run.WorkflowName != "booking-reminders" {
		t.Errorf("Run() = %+v", run)
	}

	n, err := testutil.GatherAndCount(reg, "orchestrator_workflow_triggers_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("trigger series = %d, want 1", n)
	}
}

func TestExecutor_TriggerFailures(t *testing.T) {
	tests := []struct {
		name      string
		engine    ports.WorkflowEngine
		workflow  string
		wantError string
	}{
		{
			name:      "not registered",
			engine:    engineFunc(func(context.Context, string, map[string]any) (*ports.WorkflowExecution, error) { return &ports.WorkflowExecution{}, nil }),
			workflow:  "unknown-workflow",
			wantError: "workflow not registered",
		},
		{
			name:      "nil engine",
			engine:    nil,
			workflow:  "aB3dE5gH7jK9mN1p",
			wantError: domain.ErrWorkflowUnavailable.Error(),
		},
		{
			name: "unavailable",
			engine: engineFunc(func(context.Context, string, map[string]any) (*ports.WorkflowExecution, error) {
				return nil, errors.Join(domain.ErrWorkflowUnavailable, errors.New("dial tcp: connection refused"))
			}),
			workflow:  "aB3dE5gH7jK9mN1p",
			wantError: domain.ErrWorkflowUnavailable.Error(),
		},
		{
			name: "bad status",
			engine: engineFunc(func(context.Context, string, map[string]any) (*ports.WorkflowExecution, error) {
				return nil, &domain.WorkflowTriggerError{Workflow: "w", StatusCode: 500, Err: errors.New("boom")}
			}),
			workflow:  "aB3dE5gH7jK9mN1p",
			wantError: "status 500",
		},
		{
			name: "panic",
			engine: engineFunc(func(context.Context, string, map[string]any) (*ports.WorkflowExecution, error) {
				panic("engine exploded")
			}),
			workflow:  "aB3dE5gH7jK9mN1p",
			wantError: "engine exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewExecutor(tt.engine, nil).Trigger(context.Background(), tt.workflow, nil)
			if res.Success {
				t.Fatal("Success = true, want false")
			}
			if !strings.Contains(res.Error, tt.wantError) {
				t.Errorf("Error = %q, want it to contain %q", res.Error, tt.wantError)
			}
			run := res.Run(tt.workflow)
			if run.Status != domain.WorkflowRunFailed || run.Error == "" {
				t.Errorf("Run() = %+v", run)
			}
		})
	}
}

func TestExecutor_AgainstHTTPEngine_Refused(t *testing.T) {
	x := NewExecutor(NewHTTPEngine(HTTPEngineConfig{BaseURL: closedURL(t)}), nil)
	res := x.Trigger(context.Background(), "aB3dE5gH7jK9mN1p", map[string]any{"a": 1})
	if res.Success || res.Error != domain.ErrWorkflowUnavailable.Error() {
		t.Errorf("Trigger() = %+v", res)
	}
}

func TestTriggerResult_Run(t *testing.T) {
	start := time.Now().UTC()
	tests := []struct {
		name       string
		res        TriggerResult
		wantStatus domain.WorkflowRunStatus
		wantError  string
		wantResult any
	}{
		{
			name:       "success keeps engine response",
			res:        TriggerResult{Success: true, WorkflowID: "w1", ExecutionID: "e1", Data: map[string]any{"state": "running"}, StartedAt: start, FinishedAt: start},
			wantStatus: domain.WorkflowRunSuccess,
			wantResult: "running",
		},
		{
			name:       "failure keeps error",
			res:        TriggerResult{WorkflowID: "w1", Error: "workflow engine unavailable", StartedAt: start, FinishedAt: start},
			wantStatus: domain.WorkflowRunFailed,
			wantError:  "workflow engine unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := tt.res.Run("booking-reminders")
			if run.WorkflowName != "booking-reminders" || run.WorkflowID != "w1" {
				t.Errorf("Run() = %+v", run)
			}
			if run.Status != tt.wantStatus || run.Error != tt.wantError {
				t.Errorf("Status, Error = %s, %q; want %s, %q", run.Status, run.Error, tt.wantStatus, tt.wantError)
			}
			if got := run.Result["state"]; tt.wantResult != nil && got != tt.wantResult {
				t.Errorf("Result[state] = %v, want %v", got, tt.wantResult)
			}
			if run.FinishedAt == nil {
				t.Error("FinishedAt not set")
			}
		})
	}
}
