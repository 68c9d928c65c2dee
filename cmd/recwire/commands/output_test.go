package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		format  string
		path    string
		want    string
		wantErr bool
	}{
		{"", "", "json", false},
		{"", "plans.json", "json", false},
		{"", "plans.YAML", "yaml", false},
		{"", "plans.yml", "yaml", false},
		{"json", "plans.yaml", "json", false},
		{"yaml", "", "yaml", false},
		{"toml", "", "", true},
	}

	for _, tt := range tests {
		got, err := formatFor(tt.format, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("formatFor(%q, %q) error = %v, wantErr %v", tt.format, tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("formatFor(%q, %q): expected %s, got %s", tt.format, tt.path, tt.want, got)
		}
	}
}

func TestEncode(t *testing.T) {
	v := failure{Component: "rec", Kind: "UnknownReference", Error: "mic missing"}

	var buf bytes.Buffer
	if err := encode(&buf, "json", v); err != nil {
		t.Fatalf("Failed to encode JSON: %v", err)
	}
	var fromJSON failure
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if fromJSON != v {
		t.Errorf("Expected %+v, got %+v", v, fromJSON)
	}

	buf.Reset()
	if err := encode(&buf, "yaml", v); err != nil {
		t.Fatalf("Failed to encode YAML: %v", err)
	}
	if !strings.Contains(buf.String(), "component: rec") {
		t.Errorf("Expected YAML keys, got %q", buf.String())
	}
	var fromYAML failure
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("Invalid YAML output: %v", err)
	}
	if fromYAML != v {
		t.Errorf("Expected %+v, got %+v", v, fromYAML)
	}
}
