// Package wiring turns a validated, resolved recorder configuration into a
// WiringPlan.
package wiring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/recorder"
)

// planNamespace seeds deterministic plan IDs.
var planNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/openfroyo/recwire/plan"))

// Source is the diagnostic source name of the emitter.
const Source = "emitter"

// Options controls optional emission features.
type Options struct {
	// EnableTimers wires timer hooks and sets HasTimers when any is present.
	// When false, timer hooks are accepted but left unwired.
	EnableTimers bool
}

// Emitter produces wiring plans.
type Emitter struct {
	opts   Options
	logger zerolog.Logger
}

// NewEmitter creates an emitter.
func NewEmitter(opts Options, logger zerolog.Logger) *Emitter {
	return &Emitter{
		opts:   opts,
		logger: logger.With().Str("component", "emitter").Logger(),
	}
}

// setters maps reference fields to the instance setter that receives them.
var setters = map[string]string{
	recorder.FieldMicrophone:  recorder.SetMicrophone,
	recorder.FieldSpeaker:     recorder.SetSpeaker,
	recorder.FieldMediaPlayer: recorder.SetMediaPlayer,
}

// Emit builds the plan for cfg from its resolved dependencies. It returns a
// complete plan or an error, never a partial plan.
func (e *Emitter) Emit(cfg *recorder.Config, deps []engine.ResolvedDependency) (*engine.WiringPlan, error) {
	if cfg == nil {
		return nil, engine.NewInvalidDocumentError("no configuration to emit", nil)
	}

	bindings, err := bindingsFor(cfg, deps)
	if err != nil {
		return nil, err
	}

	plan := &engine.WiringPlan{
		Instance: engine.Instance{
			ID:            cfg.ID,
			Type:          recorder.InstanceType,
			SetupPriority: cfg.SetupPriority,
		},
		Bindings: bindings,
		Parameters: []engine.Parameter{
			{Name: recorder.FieldNoiseSuppressionLevel, Setter: recorder.SetNoiseSuppressionLevel, Value: cfg.NoiseSuppressionLevel},
			{Name: recorder.FieldAutoGain, Setter: recorder.SetAutoGain, Value: cfg.AutoGain},
			{Name: recorder.FieldVolumeMultiplier, Setter: recorder.SetVolumeMultiplier, Value: cfg.VolumeMultiplier},
		},
		Triggers: make([]engine.TriggerBinding, 0),
		Manifest: recorder.Manifest(),
	}

	var inertTimers, inertOther []string
	for _, h := range recorder.Hooks() {
		chain, ok := cfg.Hook(h.Name)
		if !ok {
			continue
		}
		switch {
		case h.Inert:
			inertOther = append(inertOther, h.Name)
			continue
		case h.Timer && !e.opts.EnableTimers:
			inertTimers = append(inertTimers, h.Name)
			continue
		case h.Timer:
			plan.HasTimers = true
		}
		plan.Triggers = append(plan.Triggers, engine.TriggerBinding{
			Hook:   h.Name,
			Getter: h.Getter,
			Args:   h.Args,
			Chain:  chain,
		})
	}

	if len(inertTimers) > 0 {
		plan.Warn(Source, inertTimers[0], fmt.Sprintf(
			"timer support is disabled; hooks not wired: %s", strings.Join(inertTimers, ", ")))
	}
	if len(inertOther) > 0 {
		plan.Diagnostics = append(plan.Diagnostics, engine.Diagnostic{
			Severity: engine.SeverityInfo,
			Source:   Source,
			Field:    inertOther[0],
			Message:  fmt.Sprintf("hooks accepted but not wired: %s", strings.Join(inertOther, ", ")),
		})
	}

	plan.Defines = []string{recorder.Define}
	if plan.HasTimers {
		plan.Defines = append(plan.Defines, recorder.TimersDefine)
	}

	id, err := PlanID(plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id

	e.logger.Debug().
		Str("id", cfg.ID).
		Str("plan", plan.ID).
		Int("bindings", len(plan.Bindings)).
		Int("triggers", len(plan.Triggers)).
		Bool("has_timers", plan.HasTimers).
		Msg("Wiring plan emitted")

	return plan, nil
}

// bindingsFor pairs every reference of cfg with its resolved dependency, in
// the configuration's reference order.
func bindingsFor(cfg *recorder.Config, deps []engine.ResolvedDependency) ([]engine.Binding, error) {
	byField := make(map[string]engine.ResolvedDependency, len(deps))
	for _, d := range deps {
		byField[d.Field] = d
	}

	refs := cfg.References()
	bindings := make([]engine.Binding, 0, len(refs))
	for _, req := range refs {
		dep, ok := byField[req.Field]
		if !ok || dep.Handle.ID != req.Reference.ID {
			return nil, engine.NewUnknownReferenceError(req.Reference.ID, req.Reference.Capability).
				WithField(req.Field).
				WithComponent(cfg.ID)
		}
		if !dep.Handle.Has(req.Reference.Capability) {
			return nil, engine.NewCapabilityMismatchError(dep.Handle.ID, req.Reference.Capability, dep.Handle.Capabilities).
				WithField(req.Field).
				WithComponent(cfg.ID)
		}
		bindings = append(bindings, engine.Binding{
			Setter:     setters[req.Field],
			Field:      req.Field,
			Capability: req.Reference.Capability,
			Target:     dep.Handle.ID,
		})
	}
	return bindings, nil
}

// PlanID derives the plan ID from the instance ID and the plan content.
// The plan's own ID field is ignored.
func PlanID(plan *engine.WiringPlan) (string, error) {
	content := *plan
	content.ID = ""
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to hash plan %s: %w", plan.Instance.ID, err)
	}
	name := append([]byte(plan.Instance.ID+"\x00"), data...)
	return uuid.NewSHA1(planNamespace, name).String(), nil
}
