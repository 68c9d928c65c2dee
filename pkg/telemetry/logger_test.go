package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("compiler").
		WithRunID("run-1").
		WithComponentID("mic1").
		WithSource("kitchen.yaml").
		Info("Component emitted")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}

	want := map[string]string{
		"component":    "compiler",
		"run_id":       "run-1",
		"component_id": "mic1",
		"source":       "kitchen.yaml",
		"message":      "Component emitted",
		"level":        "info",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("Expected %s=%s, got %v", k, v, entry[k])
		}
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warnf("shown %d", 1)

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Expected info message to be filtered")
	}
	if !strings.Contains(buf.String(), "shown 1") {
		t.Errorf("Expected warning in output, got %q", buf.String())
	}
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("Expected message from context logger, got %q", buf.String())
	}

	// A bare context yields a silent logger.
	FromContext(context.Background()).Error("dropped")
}
