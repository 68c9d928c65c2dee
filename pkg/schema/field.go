package schema

import (
	"errors"
	"sort"

	"github.com/openfroyo/recwire/pkg/engine"
)

// FieldSpec declares one configuration field.
type FieldSpec struct {
	// Name is the configuration key.
	Name string

	// Type describes the accepted value for diagnostics (e.g. "int [0, 4]").
	Type string

	// Default is applied when the field is absent. Defaults pass through the
	// validator like user input.
	Default interface{}

	// Required fields without a default fail with MissingField when absent.
	Required bool

	// Validator coerces the value. A nil validator accepts anything.
	Validator Validator
}

// HasDefault reports whether the field declares a default.
func (f FieldSpec) HasDefault() bool {
	return f.Default != nil
}

// Schema is an ordered, read-only set of field specifications.
type Schema struct {
	name   string
	fields []FieldSpec
	index  map[string]int
}

// New creates a schema. Field order is the validation order.
func New(name string, fields ...FieldSpec) *Schema {
	s := &Schema{
		name:   name,
		fields: append([]FieldSpec(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range s.fields {
		if _, dup := s.index[f.Name]; dup {
			panic("schema " + name + ": duplicate field " + f.Name)
		}
		s.index[f.Name] = i
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Fields returns the field specifications in validation order.
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Field returns the named field specification.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Extend returns a new schema with extra fields appended.
func (s *Schema) Extend(fields ...FieldSpec) *Schema {
	return New(s.name, append(s.Fields(), fields...)...)
}

// UnknownKeys returns keys of raw not declared by the schema, sorted.
func (s *Schema) UnknownKeys(raw map[string]interface{}) []string {
	var unknown []string
	for key := range raw {
		if _, ok := s.index[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Validate checks raw against the schema and returns the coerced values.
// It fails fast: unknown keys first, then each field in declaration order.
// A key present with a nil value is treated as absent.
func (s *Schema) Validate(raw map[string]interface{}) (Values, error) {
	if unknown := s.UnknownKeys(raw); len(unknown) > 0 {
		return nil, engine.NewUnknownFieldError(unknown[0]).
			WithDetail("schema", s.name).
			WithDetail("unknown", unknown)
	}

	values := make(Values, len(s.fields))
	for _, field := range s.fields {
		value, present := raw[field.Name]
		if value == nil {
			present = false
		}

		if !present {
			switch {
			case field.HasDefault():
				value = field.Default
			case field.Required:
				return nil, engine.NewMissingFieldError(field.Name).WithDetail("schema", s.name)
			default:
				continue
			}
		}

		coerced, err := field.coerce(value)
		if err != nil {
			return nil, err
		}
		values[field.Name] = coerced
	}

	return values, nil
}

func (f FieldSpec) coerce(value interface{}) (interface{}, error) {
	if f.Validator == nil {
		return value, nil
	}

	coerced, err := f.Validator.Coerce(value)
	if err == nil {
		return coerced, nil
	}

	var ve *ValueError
	if errors.As(err, &ve) {
		return nil, engine.NewInvalidFieldValueError(f.Name, ve.Reason, ve.Err).
			WithStage(ve.Stage).
			WithDetail("value", value)
	}
	return nil, engine.NewInvalidFieldValueError(f.Name, err.Error(), err).
		WithDetail("value", value)
}

// Values holds coerced field values keyed by field name. Absent optional
// fields without defaults have no entry.
type Values map[string]interface{}

// Has reports whether the field has a value.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Int returns an int value.
func (v Values) Int(name string) int {
	n, _ := v[name].(int)
	return n
}

// Float returns a float64 value.
func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

// String returns a string value.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Reference returns an object reference value.
func (v Values) Reference(name string) (engine.ObjectReference, bool) {
	ref, ok := v[name].(engine.ObjectReference)
	return ref, ok
}

// Chain returns an automation chain value.
func (v Values) Chain(name string) (*engine.AutomationChain, bool) {
	chain, ok := v[name].(*engine.AutomationChain)
	return chain, ok
}
