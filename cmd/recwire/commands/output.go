package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/recwire/pkg/compiler"
	"github.com/openfroyo/recwire/pkg/engine"
)

// report is the serialized form of a compile result.
type report struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	Source     string                `json:"source" yaml:"source"`
	Status     engine.RunStatus      `json:"status" yaml:"status"`
	Order      []string              `json:"order" yaml:"order"`
	Plans      []*engine.WiringPlan  `json:"plans" yaml:"plans"`
	Failures   []failure             `json:"failures,omitempty" yaml:"failures,omitempty"`
	Summary    engine.CompileSummary `json:"summary" yaml:"summary"`
	Primitives int                   `json:"primitives" yaml:"primitives"`
}

type failure struct {
	Component string           `json:"component" yaml:"component"`
	Kind      engine.ErrorKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error     string           `json:"error" yaml:"error"`
}

func newReport(res *compiler.Result) report {
	r := report{
		RunID:      res.RunID,
		Source:     res.Source,
		Status:     res.Status(),
		Order:      res.Order,
		Plans:      res.Plans,
		Summary:    res.Summary,
		Primitives: len(res.Primitives),
	}
	for _, c := range res.Failed() {
		r.Failures = append(r.Failures, failure{Component: c.ID, Kind: engine.KindOf(c.Err), Error: c.Err.Error()})
	}
	for _, e := range res.AutomationErrors {
		r.Failures = append(r.Failures, failure{Component: e.Location, Kind: engine.KindOf(e.Err), Error: e.Err.Error()})
	}
	return r
}

// formatFor picks the output format: explicit flag first, then the file
// extension, then JSON.
func formatFor(format, path string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "json"
		}
	}
	switch format {
	case "json", "yaml":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (json, yaml)", format)
	}
}

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// writeOutput encodes v to path, or to stdout when path is empty or "-".
func writeOutput(path, format string, v interface{}) error {
	if path == "" || path == "-" {
		return encode(os.Stdout, format, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(f, format, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// printFailures writes one line per failed component and automation.
func printFailures(w io.Writer, res *compiler.Result) {
	for _, c := range res.Failed() {
		fmt.Fprintf(w, "  ✗ %s: %v\n", c.ID, c.Err)
	}
	for _, e := range res.AutomationErrors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
}

// resultError turns a result with failures into a command error.
func resultError(res *compiler.Result) error {
	failed := len(res.Failed()) + len(res.AutomationErrors)
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d components failed, %d automations failed",
		len(res.Failed()), res.Summary.Components, len(res.AutomationErrors))
}
