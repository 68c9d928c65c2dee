package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a compile error. Every kind is a compile-time
// configuration problem; none of them is retried.
type ErrorKind string

const (
	// ErrorKindMissingField indicates a required field was not provided.
	ErrorKindMissingField ErrorKind = "MissingField"

	// ErrorKindUnknownField indicates a field the schema does not declare.
	ErrorKindUnknownField ErrorKind = "UnknownField"

	// ErrorKindInvalidFieldValue indicates a type, unit or range failure.
	ErrorKindInvalidFieldValue ErrorKind = "InvalidFieldValue"

	// ErrorKindConflictingFields indicates a mutual-exclusivity violation.
	ErrorKindConflictingFields ErrorKind = "ConflictingFields"

	// ErrorKindUnknownReference indicates a reference to an unregistered object.
	ErrorKindUnknownReference ErrorKind = "UnknownReference"

	// ErrorKindCapabilityMismatch indicates a resolved object lacks the
	// capability the reference requires.
	ErrorKindCapabilityMismatch ErrorKind = "CapabilityMismatch"

	// ErrorKindDuplicateID indicates an identifier was registered twice.
	ErrorKindDuplicateID ErrorKind = "DuplicateID"

	// ErrorKindDependencyCycle indicates declarations reference each other in a loop.
	ErrorKindDependencyCycle ErrorKind = "DependencyCycle"

	// ErrorKindUnknownPrimitive indicates an action or condition name that
	// no factory registered.
	ErrorKindUnknownPrimitive ErrorKind = "UnknownPrimitive"

	// ErrorKindPolicyViolation indicates an emitted plan was rejected by policy.
	ErrorKindPolicyViolation ErrorKind = "PolicyViolation"

	// ErrorKindInvalidDocument indicates the document itself could not be read
	// or has the wrong shape.
	ErrorKindInvalidDocument ErrorKind = "InvalidDocument"
)

// Validation stages reported on InvalidFieldValue errors.
const (
	StageCoercion       = "coercion"
	StageUnitConversion = "unit-conversion"
	StageRange          = "range"
)

// CompileError is a classified compile-time error with the offending
// field or identifier attached.
type CompileError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable reason.
	Message string `json:"message"`

	// Component is the ID of the component being compiled, if known.
	Component string `json:"component,omitempty"`

	// Field is the configuration field at fault, if any.
	Field string `json:"field,omitempty"`

	// Stage names the validator stage that failed (unit-conversion, range).
	Stage string `json:"stage,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details carries kind-specific context (group name, capability sets).
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("] ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	var context []string
	if e.Component != "" {
		context = append(context, "component="+e.Component)
	}
	if e.Stage != "" {
		context = append(context, "stage="+e.Stage)
	}
	if len(context) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(context, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a CompileError of the same kind. A target
// with a Field set must also match the field.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// WithComponent adds component context to an error.
func (e *CompileError) WithComponent(id string) *CompileError {
	e.Component = id
	return e
}

// WithField sets the offending field.
func (e *CompileError) WithField(field string) *CompileError {
	e.Field = field
	return e
}

// WithStage sets the failing validator stage.
func (e *CompileError) WithStage(stage string) *CompileError {
	e.Stage = stage
	return e
}

// WithDetail adds a detail field to the error context.
func (e *CompileError) WithDetail(key string, value interface{}) *CompileError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewMissingFieldError reports an absent required field.
func NewMissingFieldError(field string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindMissingField,
		Message: "required field is missing",
		Field:   field,
	}
}

// NewUnknownFieldError reports a field the schema does not declare.
func NewUnknownFieldError(field string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindUnknownField,
		Message: "field is not recognized",
		Field:   field,
	}
}

// NewInvalidFieldValueError reports a coercion, unit or range failure.
func NewInvalidFieldValueError(field, reason string, err error) *CompileError {
	return &CompileError{
		Kind:    ErrorKindInvalidFieldValue,
		Message: reason,
		Field:   field,
		Err:     err,
	}
}

// NewConflictingFieldsError reports that more than one field of an
// exclusivity group is set.
func NewConflictingFieldsError(group string, fields []string) *CompileError {
	offending := append([]string(nil), fields...)
	return &CompileError{
		Kind: ErrorKindConflictingFields,
		Message: fmt.Sprintf("at most one of the %q group may be set, got %s",
			group, strings.Join(offending, ", ")),
		Details: map[string]interface{}{
			"group":  group,
			"fields": offending,
		},
	}
}

// NewUnknownReferenceError reports a reference to an unregistered object.
func NewUnknownReferenceError(id string, capability Capability) *CompileError {
	return &CompileError{
		Kind:    ErrorKindUnknownReference,
		Message: fmt.Sprintf("no object with id %q is declared", id),
		Details: map[string]interface{}{
			"id":         id,
			"capability": string(capability),
		},
	}
}

// NewCapabilityMismatchError reports an object that cannot serve the
// required capability.
func NewCapabilityMismatchError(id string, want Capability, have []Capability) *CompileError {
	names := make([]string, len(have))
	for i, c := range have {
		names[i] = string(c)
	}
	return &CompileError{
		Kind: ErrorKindCapabilityMismatch,
		Message: fmt.Sprintf("object %q is not a %s (provides: %s)",
			id, want, strings.Join(names, ", ")),
		Details: map[string]interface{}{
			"id":           id,
			"required":     string(want),
			"capabilities": names,
		},
	}
}

// NewDuplicateIDError reports an identifier registered twice.
func NewDuplicateIDError(id string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindDuplicateID,
		Message: fmt.Sprintf("id %q is already declared", id),
		Details: map[string]interface{}{"id": id},
	}
}

// NewDependencyCycleError reports a reference loop between declarations.
func NewDependencyCycleError(cycle []string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindDependencyCycle,
		Message: "circular reference: " + strings.Join(cycle, " -> "),
		Details: map[string]interface{}{"cycle": append([]string(nil), cycle...)},
	}
}

// NewUnknownPrimitiveError reports an unregistered action or condition.
func NewUnknownPrimitiveError(name string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindUnknownPrimitive,
		Message: fmt.Sprintf("no action or condition named %q", name),
		Details: map[string]interface{}{"name": name},
	}
}

// NewPolicyViolationError reports a plan rejected by policy evaluation.
func NewPolicyViolationError(policy, message string) *CompileError {
	return &CompileError{
		Kind:    ErrorKindPolicyViolation,
		Message: message,
		Details: map[string]interface{}{"policy": policy},
	}
}

// NewInvalidDocumentError reports an unreadable or malformed document.
func NewInvalidDocumentError(message string, err error) *CompileError {
	return &CompileError{
		Kind:    ErrorKindInvalidDocument,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first CompileError in err's chain, or ""
// when err carries none.
func KindOf(err error) ErrorKind {
	var e *CompileError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries a CompileError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AsCompileError returns the first CompileError in err's chain.
func AsCompileError(err error) (*CompileError, bool) {
	var e *CompileError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
