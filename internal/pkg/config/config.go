package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. ORCH_SERVER__PORT=9090.
const EnvPrefix = "ORCH_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Workflow   WorkflowConfig   `koanf:"workflow"`
	Escalation EscalationConfig `koanf:"escalation"`
	Intake     IntakeConfig     `koanf:"intake"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type string `koanf:"type"` // sqlite, postgres, memory
	// Database is the generic database configuration for multi-dialect support
	Database DatabaseConfig `koanf:"database"`
}

// DatabaseConfig is the generic database configuration supporting multiple dialects.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

// ClassifierConfig configures the completion oracle used for classification.
type ClassifierConfig struct {
	BaseURL         string        `koanf:"base_url"`
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	Timeout         time.Duration `koanf:"timeout"`
	Temperature     float64       `koanf:"temperature"`
	MaxTokens       int           `koanf:"max_tokens"`
	MaxPromptTokens int           `koanf:"max_prompt_tokens"` // Budget for the serialized event payload
	RatePerSecond   float64       `koanf:"rate_per_second"`   // 0 disables limiting
	Burst           int           `koanf:"burst"`
}

// WorkflowConfig configures the external workflow engine.
type WorkflowConfig struct {
	BaseURL      string            `koanf:"base_url"`
	Path         string            `koanf:"path"`
	APIKey       string            `koanf:"api_key"`
	APIKeyHeader string            `koanf:"api_key_header"`
	Timeout      time.Duration     `koanf:"timeout"`
	Retries      int               `koanf:"retries"` // Extra attempts when the engine is unreachable
	Registry     map[string]string `koanf:"registry"` // workflow name -> engine ID
}

// EscalationConfig configures escalation thresholds and extra rules.
type EscalationConfig struct {
	BookingCancellationThreshold float64      `koanf:"booking_cancellation_threshold"`
	PaymentFailureThreshold      float64      `koanf:"payment_failure_threshold"`
	Rules                        []RuleConfig `koanf:"rules"`
	NotifyWorkflow               string       `koanf:"notify_workflow"` // Optional: workflow triggered on escalation
}

// RuleConfig is an operator-defined escalation rule. Expression is evaluated
// against the event and verdict and must return a bool.
type RuleConfig struct {
	Name       string `koanf:"name"`
	Expression string `koanf:"expression"`
	Reason     string `koanf:"reason"`
	Priority   string `koanf:"priority"`
}

type IntakeConfig struct {
	Enabled bool `koanf:"enabled"`
	Buffer  int  `koanf:"buffer"` // Max queued events, 0 for unbounded
}

type TelemetryConfig struct {
	Tracing     bool    `koanf:"tracing"`
	SampleRatio float64 `koanf:"sample_ratio"` // Fraction of root spans kept, 0 keeps all
	Metrics     bool    `koanf:"metrics"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":                               8080,
	"server.request_timeout":                    "60s",
	"storage.type":                              "memory",
	"classifier.base_url":                       "https://api.openai.com/v1",
	"classifier.model":                          "gpt-4o-mini",
	"classifier.timeout":                        "20s",
	"classifier.temperature":                    0.1,
	"classifier.max_tokens":                     500,
	"classifier.max_prompt_tokens":              2000,
	"workflow.path":                             "/api/v1/workflows",
	"workflow.timeout":                          "30s",
	"workflow.api_key_header":                   "X-API-Key",
	"escalation.booking_cancellation_threshold": 1000,
	"escalation.payment_failure_threshold":      5000,
	"intake.enabled":                            true,
	"intake.buffer":                             10000,
	"telemetry.metrics":                         true,
}

// Load reads DefaultPath and environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the YAML file at path (a missing file is not an error),
// applies ORCH_ environment overrides and defaults, and substitutes ${VAR}
// references in secrets.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Classifier.APIKey = substituteEnvVars(cfg.Classifier.APIKey)
	cfg.Workflow.APIKey = substituteEnvVars(cfg.Workflow.APIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
