package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Classifier.Timeout != 20*time.Second {
		t.Errorf("Classifier.Timeout = %v, want 20s", cfg.Classifier.Timeout)
	}
	if cfg.Workflow.Timeout != 30*time.Second {
		t.Errorf("Workflow.Timeout = %v, want 30s", cfg.Workflow.Timeout)
	}
	if cfg.Escalation.BookingCancellationThreshold != 1000 {
		t.Errorf("BookingCancellationThreshold = %v, want 1000", cfg.Escalation.BookingCancellationThreshold)
	}
	if cfg.Escalation.PaymentFailureThreshold != 5000 {
		t.Errorf("PaymentFailureThreshold = %v, want 5000", cfg.Escalation.PaymentFailureThreshold)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoadFile_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
classifier:
  api_key: ${TEST_ORCH_CLASSIFIER_KEY}
  timeout: 5s
workflow:
  base_url: http://engine.local
  registry:
    booking-reminders: AbCdEf0123456789
escalation:
  payment_failure_threshold: 250
  rules:
    - name: vip
      expression: 'event.data.vip == true'
      reason: VIP customer
      priority: high
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("TEST_ORCH_CLASSIFIER_KEY", "sk-test")
	t.Setenv("ORCH_SERVER__PORT", "9191")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Classifier.APIKey != "sk-test" {
		t.Errorf("Classifier.APIKey = %q, want substituted value", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.Timeout != 5*time.Second {
		t.Errorf("Classifier.Timeout = %v, want 5s", cfg.Classifier.Timeout)
	}
	if got := cfg.Workflow.Registry["booking-reminders"]; got != "AbCdEf0123456789" {
		t.Errorf("Registry[booking-reminders] = %q", got)
	}
	if cfg.Escalation.PaymentFailureThreshold != 250 {
		t.Errorf("PaymentFailureThreshold = %v, want 250", cfg.Escalation.PaymentFailureThreshold)
	}
	if len(cfg.Escalation.Rules) != 1 || cfg.Escalation.Rules[0].Priority != "high" {
		t.Errorf("Rules = %+v", cfg.Escalation.Rules)
	}
}
