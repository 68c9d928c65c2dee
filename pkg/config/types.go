package config

import (
	"fmt"
	"time"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Document section keys.
const (
	SectionMicrophone    = "microphone"
	SectionSpeaker       = "speaker"
	SectionMediaPlayer   = "media_player"
	SectionAudioRecorder = "audio_recorder"
	SectionAutomations   = "automations"
)

// deviceSections maps device sections to the capability their objects provide.
var deviceSections = []struct {
	key        string
	capability engine.Capability
}{
	{SectionMicrophone, engine.CapabilityMicrophone},
	{SectionSpeaker, engine.CapabilitySpeaker},
	{SectionMediaPlayer, engine.CapabilityMediaPlayer},
}

// DeviceDecl is a platform device declared by a document.
type DeviceDecl struct {
	// ID is the unique identifier other declarations reference.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Platform is the device driver (e.g., "i2s_audio").
	Platform string `json:"platform" yaml:"platform" validate:"required"`

	// Capability is derived from the section the device is declared in.
	Capability engine.Capability `json:"capability" yaml:"capability" validate:"required"`

	// Settings holds platform-specific keys, passed through untouched.
	Settings map[string]interface{} `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Handle returns the registry entry for the device.
func (d DeviceDecl) Handle() engine.Handle {
	return engine.Handle{
		ID:           d.ID,
		Type:         fmt.Sprintf("%s.%s", d.Capability, d.Platform),
		Capabilities: []engine.Capability{d.Capability},
	}
}

// Document is a loaded configuration document.
type Document struct {
	// Source is the path or name the document was loaded from.
	Source string `json:"source"`

	// Format is the document format (yaml, json, cue, star).
	Format string `json:"format"`

	// Devices are the declared devices, in section then declaration order.
	Devices []DeviceDecl `json:"devices"`

	// Recorders are the raw recorder mappings, validated by the compiler.
	Recorders []map[string]interface{} `json:"audio_recorder"`

	// Automations are free-standing automation chains.
	Automations []interface{} `json:"automations,omitempty"`

	// LoadedAt is when the document was loaded.
	LoadedAt time.Time `json:"loaded_at"`
}

// ValidationError represents a document error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path to the error (e.g., "audio_recorder.0").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
	switch {
	case loc != "" && e.Path != "":
		return fmt.Sprintf("%s: %s: %s", loc, e.Path, e.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output is the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
