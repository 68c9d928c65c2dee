package actions

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/resolver"
	"github.com/openfroyo/recwire/pkg/schema"
)

// argsSchema is the argument schema shared by every primitive.
var argsSchema = schema.New("audio_recorder primitive",
	schema.FieldSpec{Name: "id", Type: "id of an audio recorder", Validator: schema.Reference(engine.CapabilityAudioRecorder)},
)

// Factory builds primitives, resolving their parent recorder.
type Factory struct {
	resolver *resolver.Resolver
	logger   zerolog.Logger
}

// NewFactory creates a factory resolving parents through r.
func NewFactory(r *resolver.Resolver, logger zerolog.Logger) *Factory {
	return &Factory{
		resolver: r,
		logger:   logger.With().Str("component", "actions").Logger(),
	}
}

// Build creates the named primitive for parentID. An empty parentID selects
// the only registered recorder.
func (f *Factory) Build(name string, parentID string) (*Primitive, error) {
	kind := Kind(name)
	if err := kind.Validate(); err != nil {
		return nil, engine.NewUnknownPrimitiveError(name)
	}

	var (
		parent *engine.Handle
		err    error
	)
	if parentID == "" {
		parent, err = f.resolver.Sole(engine.CapabilityAudioRecorder)
	} else {
		parent, err = f.resolver.Resolve(engine.ObjectReference{ID: parentID, Capability: engine.CapabilityAudioRecorder})
	}
	if err != nil {
		if ce, ok := engine.AsCompileError(err); ok {
			ce.WithField("id").WithDetail("primitive", name)
		}
		return nil, err
	}

	f.logger.Debug().
		Str("kind", name).
		Str("parent", parent.ID).
		Msg("Primitive built")

	return &Primitive{Kind: kind, Type: kind.TypeName(), ParentID: parent.ID}, nil
}

// BuildFromArgs creates the named primitive from its raw chain arguments:
// nil, an empty mapping, a mapping with "id", or a bare ID string.
func (f *Factory) BuildFromArgs(name string, args interface{}) (*Primitive, error) {
	if err := Kind(name).Validate(); err != nil {
		return nil, engine.NewUnknownPrimitiveError(name)
	}

	var raw map[string]interface{}
	switch a := args.(type) {
	case nil:
		raw = map[string]interface{}{}
	case string:
		raw = map[string]interface{}{"id": a}
	case map[string]interface{}:
		raw = a
	default:
		return nil, engine.NewInvalidFieldValueError(name, fmt.Sprintf("expected mapping, got %T", args), nil).
			WithStage(engine.StageCoercion)
	}

	values, err := argsSchema.Validate(raw)
	if err != nil {
		if ce, ok := engine.AsCompileError(err); ok {
			ce.WithDetail("primitive", name)
		}
		return nil, err
	}

	ref, _ := values.Reference("id")
	return f.Build(name, ref.ID)
}

// ScanChain builds a primitive for every registered primitive name found
// anywhere in the chain, including nested conditions and branches. Mapping
// keys are visited in sorted order so results are reproducible.
func (f *Factory) ScanChain(chain *engine.AutomationChain) ([]*Primitive, error) {
	if chain == nil {
		return nil, nil
	}

	var out []*Primitive
	for _, action := range chain.Actions {
		found, err := f.scan(action)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (f *Factory) scan(node interface{}) ([]*Primitive, error) {
	var out []*Primitive

	switch v := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if Kind(k).Validate() == nil {
				p, err := f.BuildFromArgs(k, v[k])
				if err != nil {
					return nil, err
				}
				out = append(out, p)
				continue
			}
			// Conditions may be written as a bare name.
			if s, ok := v[k].(string); ok && k == "condition" && Kind(s).Validate() == nil {
				p, err := f.Build(s, "")
				if err != nil {
					return nil, err
				}
				out = append(out, p)
				continue
			}
			found, err := f.scan(v[k])
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}

	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && Kind(s).Validate() == nil {
				p, err := f.Build(s, "")
				if err != nil {
					return nil, err
				}
				out = append(out, p)
				continue
			}
			found, err := f.scan(item)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}

	case []map[string]interface{}:
		for _, item := range v {
			found, err := f.scan(item)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
	}

	return out, nil
}
