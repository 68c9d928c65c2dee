package recorder

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/recwire/pkg/crossfield"
	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/schema"
)

// Fields returns the recorder's field specifications in validation order.
func Fields() []schema.FieldSpec {
	fields := []schema.FieldSpec{
		{Name: FieldID, Type: "id", Validator: schema.ID()},
		{
			Name:      FieldMicrophone,
			Type:      "id of a microphone",
			Required:  true,
			Validator: schema.Reference(engine.CapabilityMicrophone),
		},
		{Name: FieldSpeaker, Type: "id of a speaker", Validator: schema.Reference(engine.CapabilitySpeaker)},
		{Name: FieldMediaPlayer, Type: "id of a media player", Validator: schema.Reference(engine.CapabilityMediaPlayer)},
		{
			Name:      FieldNoiseSuppressionLevel,
			Type:      "int [0, 4]",
			Default:   0,
			Validator: schema.All(schema.Int(), schema.IntRange(0, 4)),
		},
		{
			Name:    FieldAutoGain,
			Type:    "dBFS [0, 31]",
			Default: "0dBFS",
			Validator: schema.All(
				schema.FloatWithUnit("decibel full scale", "dBFS|dbfs|DBFS"),
				schema.IntRange(0, 31),
			),
		},
		{
			Name:      FieldVolumeMultiplier,
			Type:      "float > 0",
			Default:   1.0,
			Validator: schema.All(schema.Float(), schema.FloatRange(schema.Above(0), nil)),
		},
		{Name: FieldSetupPriority, Type: "float", Validator: schema.Float()},
	}

	for _, h := range hooks {
		fields = append(fields, schema.FieldSpec{
			Name:      h.Name,
			Type:      "automation",
			Validator: schema.AutomationChain(),
		})
	}
	return fields
}

// OutputTable returns the recorder's exclusivity constraints.
func OutputTable() *crossfield.Table {
	return crossfield.NewTable(crossfield.Group{
		Name:   OutputGroup,
		Fields: []string{FieldSpeaker, FieldMediaPlayer},
	})
}

// NewRelationshipValidator returns the cross-field validator for recorder
// configurations.
func NewRelationshipValidator() *crossfield.Validator[*Config] {
	return crossfield.NewValidator[*Config](OutputTable())
}

// Schema validates raw recorder mappings into Configs.
type Schema struct {
	fields    *schema.Schema
	exclusive *crossfield.Table
	validate  *validator.Validate
}

// NewSchema creates the recorder schema.
func NewSchema() *Schema {
	return &Schema{
		fields:    schema.New(Kind, Fields()...),
		exclusive: OutputTable(),
		validate:  validator.New(),
	}
}

// Fields returns the field specifications.
func (s *Schema) Fields() []schema.FieldSpec {
	return s.fields.Fields()
}

// Validate checks a raw mapping. When no id is given, DefaultID is used.
func (s *Schema) Validate(raw map[string]interface{}) (*Config, error) {
	return s.ValidateWithDefaultID(raw, DefaultID)
}

// ValidateWithDefaultID checks a raw mapping, using defaultID when the
// mapping has no id. Checks run in a fixed order and stop at the first
// failure: output exclusivity on the raw keys, unknown keys, then every
// field in declaration order.
func (s *Schema) ValidateWithDefaultID(raw map[string]interface{}, defaultID string) (*Config, error) {
	if raw == nil {
		return nil, engine.NewInvalidDocumentError("recorder configuration must be a mapping", nil)
	}

	// Exclusivity is decided on key presence alone, so a conflicting
	// configuration is reported as such whatever its field values. The
	// relationship validator re-checks the same table on the Config.
	if err := s.exclusive.Check(crossfield.FieldSet(raw)); err != nil {
		return nil, err
	}

	values, err := s.fields.Validate(raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ID:                    values.String(FieldID),
		NoiseSuppressionLevel: values.Int(FieldNoiseSuppressionLevel),
		AutoGain:              values.Int(FieldAutoGain),
		VolumeMultiplier:      values.Float(FieldVolumeMultiplier),
		Hooks:                 make(map[string]*engine.AutomationChain),
	}
	if cfg.ID == "" {
		cfg.ID = defaultID
		cfg.GeneratedID = true
	}

	cfg.Microphone, _ = values.Reference(FieldMicrophone)
	if ref, ok := values.Reference(FieldSpeaker); ok {
		cfg.Speaker = &ref
	}
	if ref, ok := values.Reference(FieldMediaPlayer); ok {
		cfg.MediaPlayer = &ref
	}
	if values.Has(FieldSetupPriority) {
		p := values.Float(FieldSetupPriority)
		cfg.SetupPriority = &p
	}
	for _, h := range hooks {
		if chain, ok := values.Chain(h.Name); ok {
			cfg.Hooks[h.Name] = chain
		}
	}

	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("recorder %s failed invariant check: %w", cfg.ID, err)
	}

	return cfg, nil
}
