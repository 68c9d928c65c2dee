package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recwire.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(New(), writeSettings(t, "{}\n"))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if s.Log.Level != "info" || s.Log.Format != "console" {
		t.Errorf("Expected info/console logging, got %s/%s", s.Log.Level, s.Log.Format)
	}
	if s.Compile.EnableTimers || s.Compile.HaltOnError {
		t.Error("Expected timers and halt-on-error off by default")
	}
	if s.Compile.StarlarkTimeout != 5*time.Second {
		t.Errorf("Expected 5s starlark timeout, got %v", s.Compile.StarlarkTimeout)
	}
	if !s.Policy.Builtins {
		t.Error("Expected built-in policies on by default")
	}
	if s.History.Enabled {
		t.Error("Expected history off by default")
	}
	if s.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %v", s.Watch.Debounce)
	}
	if s.Tracing.Exporter != "none" {
		t.Errorf("Expected no trace exporter, got %s", s.Tracing.Exporter)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeSettings(t, `
log:
  level: debug
  format: json
compile:
  enable_timers: true
  starlark_timeout: 2s
policy:
  paths: [policies, extra.rego]
history:
  path: history.db
  keep: 20
`)

	s, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if s.Log.Level != "debug" || s.Log.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", s.Log.Level, s.Log.Format)
	}
	if !s.Compile.EnableTimers {
		t.Error("Expected timers enabled")
	}
	if s.Compile.StarlarkTimeout != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %v", s.Compile.StarlarkTimeout)
	}
	if !reflect.DeepEqual(s.Policy.Paths, []string{"policies", "extra.rego"}) {
		t.Errorf("Expected policy paths, got %v", s.Policy.Paths)
	}
	if !s.History.Enabled || s.History.Path != "history.db" || s.History.Keep != 20 {
		t.Errorf("Expected history enabled at history.db keeping 20, got %+v", s.History)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RECWIRE_COMPILE_HALT_ON_ERROR", "true")
	t.Setenv("LOG_LEVEL", "warn")

	s, err := Load(New(), writeSettings(t, "log:\n  format: json\n"))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if !s.Compile.HaltOnError {
		t.Error("Expected halt-on-error from environment")
	}
	if s.Log.Level != "warn" {
		t.Errorf("Expected LOG_LEVEL to set warn, got %s", s.Log.Level)
	}
	if s.Log.Format != "json" {
		t.Errorf("Expected json format from file, got %s", s.Log.Format)
	}
}

func TestLoad_Flags(t *testing.T) {
	flags := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	flags.Bool("enable-timers", false, "")
	flags.StringSlice("policy", nil, "")
	flags.String("record", "", "")
	flags.String("trace-exporter", "", "")
	if err := flags.Parse([]string{"--enable-timers", "--policy", "a.rego,b.rego", "--record", "runs.db"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	v := New()
	if err := BindFlags(v, flags); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}

	s, err := Load(v, writeSettings(t, "compile:\n  enable_timers: false\n"))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if !s.Compile.EnableTimers {
		t.Error("Expected flag to override file")
	}
	if !reflect.DeepEqual(s.Policy.Paths, []string{"a.rego", "b.rego"}) {
		t.Errorf("Expected policy paths from flag, got %v", s.Policy.Paths)
	}
	if !s.History.Enabled || s.History.Path != "runs.db" {
		t.Errorf("Expected history at runs.db, got %+v", s.History)
	}
	// Unset flags must not clobber defaults.
	if s.Tracing.Exporter != "none" {
		t.Errorf("Expected default exporter, got %q", s.Tracing.Exporter)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad level", content: "log:\n  level: loud\n"},
		{name: "bad format", content: "log:\n  format: xml\n"},
		{name: "zero starlark timeout", content: "compile:\n  starlark_timeout: 0s\n"},
		{name: "otlp without endpoint", content: "tracing:\n  exporter: otlp\n"},
		{name: "sampling out of range", content: "tracing:\n  sampling_rate: 2\n"},
		{name: "history enabled without path", content: "history:\n  enabled: true\n"},
		{name: "metrics path", content: "metrics:\n  path: metrics\n"},
		{name: "negative keep", content: "history:\n  keep: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(New(), writeSettings(t, tt.content)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing settings file")
	}
}

func TestSettings_Telemetry(t *testing.T) {
	s, err := Load(New(), writeSettings(t, `
log:
  level: debug
tracing:
  exporter: stdout
metrics:
  addr: 127.0.0.1:9999
`))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	cfg := s.Telemetry("1.2.3")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid telemetry config, got %v", err)
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %s", cfg.ServiceVersion)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "stdout" {
		t.Errorf("Expected stdout tracing, got %+v", cfg.Tracing)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug logging, got %s", cfg.Logging.Level)
	}
	if cfg.Metrics.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("Expected metrics address, got %s", cfg.Metrics.ListenAddress)
	}
}
