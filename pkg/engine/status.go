package engine

import (
	"encoding/json"
	"fmt"
)

// Capability is an abstract behavioural contract a registered object
// satisfies (e.g., "acts as a microphone").
type Capability string

const (
	// CapabilityMicrophone is provided by audio capture devices.
	CapabilityMicrophone Capability = "microphone"

	// CapabilitySpeaker is provided by audio output devices.
	CapabilitySpeaker Capability = "speaker"

	// CapabilityMediaPlayer is provided by media player components.
	CapabilityMediaPlayer Capability = "media_player"

	// CapabilityAudioRecorder is provided by compiled audio recorder components.
	CapabilityAudioRecorder Capability = "audio_recorder"
)

// Validate checks if the capability is non-empty.
func (c Capability) Validate() error {
	if c == "" {
		return fmt.Errorf("capability must not be empty")
	}
	return nil
}

// ComponentState is a component's position in the compile lifecycle.
type ComponentState string

const (
	// ComponentStateDeclared indicates the raw declaration was accepted.
	ComponentStateDeclared ComponentState = "declared"

	// ComponentStateValidated indicates structural and relationship checks passed.
	ComponentStateValidated ComponentState = "validated"

	// ComponentStateResolved indicates all references resolved.
	ComponentStateResolved ComponentState = "resolved"

	// ComponentStateEmitted indicates a wiring plan was produced.
	ComponentStateEmitted ComponentState = "emitted"

	// ComponentStateFailed indicates compilation stopped on an error.
	ComponentStateFailed ComponentState = "failed"
)

// IsTerminal returns true if the state is final.
func (s ComponentState) IsTerminal() bool {
	return s == ComponentStateEmitted || s == ComponentStateFailed
}

// Validate checks if the component state is valid.
func (s ComponentState) Validate() error {
	switch s {
	case ComponentStateDeclared, ComponentStateValidated, ComponentStateResolved,
		ComponentStateEmitted, ComponentStateFailed:
		return nil
	default:
		return fmt.Errorf("invalid component state: %s", s)
	}
}

// Severity is the severity of a diagnostic or policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that reject a plan.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that reject a plan and must be fixed first.
	SeverityCritical Severity = "critical"
)

// Blocking returns true if the severity rejects a plan.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate checks if the severity is valid.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid severity: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s ComponentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *ComponentState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ComponentState(str)
	return s.Validate()
}

// RunStatus is the outcome of a compile run.
type RunStatus string

const (
	// RunStatusSucceeded means every component produced a plan.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial means some components failed and some emitted.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed means no component produced a plan.
	RunStatusFailed RunStatus = "failed"
)

// Status derives the run outcome from the summary.
func (s CompileSummary) Status() RunStatus {
	switch {
	case s.Failed == 0:
		return RunStatusSucceeded
	case s.Emitted > 0:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}
