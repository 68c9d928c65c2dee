package recorder

import (
	"math"
	"reflect"
	"testing"

	"github.com/openfroyo/recwire/pkg/engine"
)

func TestSchema_Validate_Defaults(t *testing.T) {
	cfg, err := NewSchema().Validate(map[string]interface{}{"microphone": "mic1"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.ID != DefaultID || !cfg.GeneratedID {
		t.Errorf("Expected generated id %s, got %s (generated=%v)", DefaultID, cfg.ID, cfg.GeneratedID)
	}
	if cfg.NoiseSuppressionLevel != 0 {
		t.Errorf("Expected noise_suppression_level 0, got %d", cfg.NoiseSuppressionLevel)
	}
	if cfg.AutoGain != 0 {
		t.Errorf("Expected auto_gain 0, got %d", cfg.AutoGain)
	}
	if cfg.VolumeMultiplier != 1.0 {
		t.Errorf("Expected volume_multiplier 1.0, got %v", cfg.VolumeMultiplier)
	}
	if cfg.Speaker != nil || cfg.MediaPlayer != nil {
		t.Error("Expected no output reference")
	}
	if len(cfg.Hooks) != 0 {
		t.Errorf("Expected no hooks, got %d", len(cfg.Hooks))
	}
}

func TestSchema_Validate_Full(t *testing.T) {
	raw := map[string]interface{}{
		"id":                      "rec",
		"microphone":              "mic1",
		"speaker":                 "spk1",
		"noise_suppression_level": 2,
		"auto_gain":               "31dBFS",
		"volume_multiplier":       2.5,
		"setup_priority":          600,
		"on_error":                []interface{}{map[string]interface{}{"logger.log": "boom"}},
		"on_intent_start":         map[string]interface{}{"logger.log": "intent"},
	}

	cfg, err := NewSchema().Validate(raw)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.ID != "rec" || cfg.GeneratedID {
		t.Errorf("Expected explicit id rec, got %s", cfg.ID)
	}
	if cfg.AutoGain != 31 {
		t.Errorf("Expected auto_gain 31, got %d", cfg.AutoGain)
	}
	if cfg.Speaker == nil || cfg.Speaker.ID != "spk1" || cfg.Speaker.Capability != engine.CapabilitySpeaker {
		t.Errorf("Unexpected speaker %+v", cfg.Speaker)
	}
	if cfg.SetupPriority == nil || *cfg.SetupPriority != 600 {
		t.Errorf("Expected setup_priority 600, got %v", cfg.SetupPriority)
	}
	if _, ok := cfg.Hook(HookError); !ok {
		t.Error("Expected on_error hook")
	}
	if _, ok := cfg.Hook(HookIntentStart); !ok {
		t.Error("Expected on_intent_start to be accepted")
	}

	want := []string{"microphone", "speaker"}
	var got []string
	for _, ref := range cfg.References() {
		got = append(got, ref.Field)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected references %v, got %v", want, got)
	}
}

func TestSchema_Validate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]interface{}
		wantKind  engine.ErrorKind
		wantField string
		wantStage string
	}{
		{
			name:      "missing microphone",
			raw:       map[string]interface{}{"speaker": "spk1"},
			wantKind:  engine.ErrorKindMissingField,
			wantField: FieldMicrophone,
		},
		{
			name:     "conflicting outputs despite invalid values",
			raw:      map[string]interface{}{"speaker": "spk1", "media_player": "mp1", "auto_gain": "99", "bogus": 1},
			wantKind: engine.ErrorKindConflictingFields,
		},
		{
			name:      "unknown field",
			raw:       map[string]interface{}{"microphone": "mic1", "gain": 3},
			wantKind:  engine.ErrorKindUnknownField,
			wantField: "gain",
		},
		{
			name:      "auto_gain above range",
			raw:       map[string]interface{}{"microphone": "mic1", "auto_gain": "32dBFS"},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldAutoGain,
			wantStage: engine.StageRange,
		},
		{
			name:      "auto_gain without unit",
			raw:       map[string]interface{}{"microphone": "mic1", "auto_gain": "31"},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldAutoGain,
			wantStage: engine.StageUnitConversion,
		},
		{
			name:      "volume zero",
			raw:       map[string]interface{}{"microphone": "mic1", "volume_multiplier": 0.0},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldVolumeMultiplier,
			wantStage: engine.StageRange,
		},
		{
			name:      "noise suppression above range",
			raw:       map[string]interface{}{"microphone": "mic1", "noise_suppression_level": 5},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldNoiseSuppressionLevel,
			wantStage: engine.StageRange,
		},
		{
			name:      "volume float32 NaN",
			raw:       map[string]interface{}{"microphone": "mic1", "volume_multiplier": float32(math.NaN())},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldVolumeMultiplier,
			wantStage: engine.StageCoercion,
		},
		{
			name:      "noise suppression float32 infinity",
			raw:       map[string]interface{}{"microphone": "mic1", "noise_suppression_level": float32(math.Inf(1))},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: FieldNoiseSuppressionLevel,
			wantStage: engine.StageCoercion,
		},
		{
			name:      "bad hook",
			raw:       map[string]interface{}{"microphone": "mic1", "on_start": "not an automation"},
			wantKind:  engine.ErrorKindInvalidFieldValue,
			wantField: HookStart,
			wantStage: engine.StageCoercion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema().Validate(tt.raw)
			ce, ok := engine.AsCompileError(err)
			if !ok {
				t.Fatalf("Expected CompileError, got %v", err)
			}
			if ce.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.wantKind, ce.Kind, ce)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, ce.Field)
			}
			if ce.Stage != tt.wantStage {
				t.Errorf("Expected stage %q, got %q", tt.wantStage, ce.Stage)
			}
		})
	}
}

func TestSchema_Validate_VolumeJustAboveZero(t *testing.T) {
	cfg, err := NewSchema().Validate(map[string]interface{}{"microphone": "mic1", "volume_multiplier": 0.0001})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.VolumeMultiplier != 0.0001 {
		t.Errorf("Expected 0.0001, got %v", cfg.VolumeMultiplier)
	}
}

func TestSchema_Validate_Deterministic(t *testing.T) {
	raw := map[string]interface{}{
		"microphone":   "mic1",
		"media_player": "mp1",
		"auto_gain":    "12dBFS",
		"on_idle":      map[string]interface{}{"then": []interface{}{map[string]interface{}{"delay": "1s"}}},
	}

	first, err := NewSchema().Validate(raw)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := NewSchema().Validate(raw)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical configs, got %+v and %+v", first, second)
	}
}

func TestRelationshipValidator(t *testing.T) {
	v := NewRelationshipValidator()

	cfg := &Config{
		ID:          "rec",
		Microphone:  engine.ObjectReference{ID: "mic1", Capability: engine.CapabilityMicrophone},
		Speaker:     &engine.ObjectReference{ID: "spk1", Capability: engine.CapabilitySpeaker},
		MediaPlayer: &engine.ObjectReference{ID: "mp1", Capability: engine.CapabilityMediaPlayer},
	}
	_, err := v.Validate(cfg)
	if !engine.IsKind(err, engine.ErrorKindConflictingFields) {
		t.Fatalf("Expected ConflictingFields, got %v", err)
	}

	cfg.MediaPlayer = nil
	got, err := v.Validate(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != cfg {
		t.Error("Expected the same config back")
	}
}

func TestRelationshipValidator_RechecksCoercedConfig(t *testing.T) {
	cfg, err := NewSchema().Validate(map[string]interface{}{"microphone": "mic1", "speaker": "spk1"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	v := NewRelationshipValidator()
	if _, err := v.Validate(cfg); err != nil {
		t.Fatalf("Expected schema output to pass, got: %v", err)
	}

	cfg.MediaPlayer = &engine.ObjectReference{ID: "mp1", Capability: engine.CapabilityMediaPlayer}
	_, err = v.Validate(cfg)
	if !engine.IsKind(err, engine.ErrorKindConflictingFields) {
		t.Errorf("Expected ConflictingFields, got %v", err)
	}
}

func TestHooks_Signatures(t *testing.T) {
	for _, h := range Hooks() {
		switch {
		case h.Name == HookError:
			want := []engine.Arg{{Type: "std::string", Name: "code"}, {Type: "std::string", Name: "message"}}
			if !reflect.DeepEqual(h.Args, want) {
				t.Errorf("Expected on_error args %v, got %v", want, h.Args)
			}
		case h.Timer:
			if len(h.Args) != 1 {
				t.Errorf("Expected one timer arg for %s, got %v", h.Name, h.Args)
			}
		default:
			if len(h.Args) != 0 {
				t.Errorf("Expected %s to take no args, got %v", h.Name, h.Args)
			}
		}
	}
}
