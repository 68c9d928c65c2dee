package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Document formats.
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatCUE      = "cue"
	FormatStarlark = "star"
)

// FormatOf returns the document format implied by a file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	case ".star", ".starlark":
		return FormatStarlark, nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", path)
	}
}

// Loader reads documents in any supported format and checks their shape.
type Loader struct {
	ctx       *cue.Context
	schemas   *SchemaRegistry
	starlark  *StarlarkEvaluator
	validator *validator.Validate
	vars      map[string]interface{}
	logger    zerolog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithStarlarkTimeout bounds Starlark document evaluation.
func WithStarlarkTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.starlark = NewStarlarkEvaluator(d)
	}
}

// WithVars predeclares variables for Starlark documents.
func WithVars(vars map[string]interface{}) LoaderOption {
	return func(l *Loader) {
		l.vars = vars
	}
}

// NewLoader creates a document loader.
func NewLoader(logger zerolog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		ctx:       cuecontext.New(),
		schemas:   NewSchemaRegistry(),
		starlark:  NewStarlarkEvaluator(30 * time.Second),
		validator: validator.New(),
		logger:    logger.With().Str("component", "loader").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the document at path.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, engine.NewInvalidDocumentError(err.Error(), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewInvalidDocumentError("failed to read document", err).
			WithDetail("path", path)
	}

	return l.LoadBytes(ctx, path, format, data)
}

// LoadBytes parses document content in the given format.
func (l *Loader) LoadBytes(ctx context.Context, name, format string, data []byte) (*Document, error) {
	raw, err := l.decode(ctx, name, format, data)
	if err != nil {
		return nil, err
	}

	doc, err := l.FromMap(ctx, raw)
	if err != nil {
		return nil, err
	}
	doc.Source = name
	doc.Format = format

	l.logger.Debug().
		Str("source", name).
		Str("format", format).
		Int("devices", len(doc.Devices)).
		Int("recorders", len(doc.Recorders)).
		Int("automations", len(doc.Automations)).
		Msg("Document loaded")

	return doc, nil
}

func (l *Loader) decode(ctx context.Context, name, format string, data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, engine.NewInvalidDocumentError("failed to parse YAML", err).WithDetail("path", name)
		}

	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, engine.NewInvalidDocumentError("failed to parse JSON", err).WithDetail("path", name)
		}

	case FormatCUE:
		val := l.ctx.CompileBytes(data, cue.Filename(name))
		if err := val.Err(); err != nil {
			return nil, cueDocumentError(err)
		}
		if err := val.Validate(cue.Concrete(true)); err != nil {
			return nil, cueDocumentError(err)
		}
		if err := val.Decode(&raw); err != nil {
			return nil, engine.NewInvalidDocumentError("failed to decode CUE document", err).WithDetail("path", name)
		}

	case FormatStarlark:
		result, err := l.starlark.Evaluate(ctx, name, string(data), l.vars)
		if err != nil {
			return nil, engine.NewInvalidDocumentError("failed to evaluate Starlark document", err).WithDetail("path", name)
		}
		raw = result.Output
		for key := range l.vars {
			delete(raw, key)
		}

	default:
		return nil, engine.NewInvalidDocumentError(fmt.Sprintf("unsupported document format %q", format), nil)
	}

	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

// cueDocumentError converts CUE errors into an InvalidDocument error listing
// every located problem.
func cueDocumentError(err error) *engine.CompileError {
	var problems []string
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{Message: cueerrors.Details(e, nil)}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		problems = append(problems, ve.String())
	}
	return engine.NewInvalidDocumentError("invalid CUE document", err).WithDetail("problems", problems)
}

// FromMap checks the shape of a decoded document and splits it into
// devices, recorders and automations. A section may hold one mapping or a
// list of mappings.
func (l *Loader) FromMap(ctx context.Context, raw map[string]interface{}) (*Document, error) {
	if err := l.schemas.ValidateAgainstSchema(ctx, "document", raw); err != nil {
		return nil, engine.NewInvalidDocumentError("document has an invalid shape", err)
	}

	doc := &Document{
		Devices:   make([]DeviceDecl, 0),
		Recorders: make([]map[string]interface{}, 0),
		LoadedAt:  time.Now(),
	}

	for _, section := range deviceSections {
		entries, err := entriesOf(raw, section.key)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			decl, err := l.device(section.key, section.capability, entry)
			if err != nil {
				return nil, engine.NewInvalidDocumentError(
					fmt.Sprintf("%s.%d: %v", section.key, i, err), err)
			}
			doc.Devices = append(doc.Devices, decl)
		}
	}

	recorders, err := entriesOf(raw, SectionAudioRecorder)
	if err != nil {
		return nil, err
	}
	doc.Recorders = recorders

	if autos, ok := raw[SectionAutomations].([]interface{}); ok {
		doc.Automations = autos
	}

	return doc, nil
}

func (l *Loader) device(section string, capability engine.Capability, entry map[string]interface{}) (DeviceDecl, error) {
	decl := DeviceDecl{Capability: capability, Settings: make(map[string]interface{})}
	for key, val := range entry {
		switch key {
		case "id":
			decl.ID, _ = val.(string)
		case "platform":
			decl.Platform, _ = val.(string)
		default:
			decl.Settings[key] = val
		}
	}
	if len(decl.Settings) == 0 {
		decl.Settings = nil
	}

	if err := l.validator.Struct(decl); err != nil {
		return DeviceDecl{}, fmt.Errorf("invalid %s declaration: %w", section, err)
	}
	return decl, nil
}

// entriesOf returns a section as a list of mappings.
func entriesOf(raw map[string]interface{}, key string) ([]map[string]interface{}, error) {
	switch v := raw[key].(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, engine.NewInvalidDocumentError(
					fmt.Sprintf("%s.%d must be a mapping, got %T", key, i, item), nil)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, engine.NewInvalidDocumentError(
			fmt.Sprintf("%s must be a mapping or a list of mappings, got %T", key, v), nil)
	}
}
