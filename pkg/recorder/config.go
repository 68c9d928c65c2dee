package recorder

import (
	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/resolver"
)

// Config is a validated audio recorder configuration. It is produced only by
// Schema.Validate and must not be modified afterwards.
type Config struct {
	// ID is the recorder identifier, explicit or generated.
	ID string `json:"id" validate:"required"`

	// Microphone is the required audio source.
	Microphone engine.ObjectReference `json:"microphone"`

	// Speaker is the optional audio sink. Exclusive with MediaPlayer.
	Speaker *engine.ObjectReference `json:"speaker,omitempty" validate:"omitempty"`

	// MediaPlayer is the optional media player sink. Exclusive with Speaker.
	MediaPlayer *engine.ObjectReference `json:"media_player,omitempty" validate:"omitempty"`

	// NoiseSuppressionLevel is the noise suppression strength.
	NoiseSuppressionLevel int `json:"noise_suppression_level" validate:"gte=0,lte=4"`

	// AutoGain is the automatic gain target in dBFS.
	AutoGain int `json:"auto_gain" validate:"gte=0,lte=31"`

	// VolumeMultiplier scales output volume.
	VolumeMultiplier float64 `json:"volume_multiplier" validate:"gt=0"`

	// SetupPriority overrides the component's setup priority.
	SetupPriority *float64 `json:"setup_priority,omitempty"`

	// Hooks maps present hook names to their automation chains.
	Hooks map[string]*engine.AutomationChain `json:"hooks,omitempty"`

	// GeneratedID is true when ID was not given in configuration.
	GeneratedID bool `json:"-"`
}

// IsSet reports whether a configuration field has a value.
func (c *Config) IsSet(field string) bool {
	switch field {
	case FieldID:
		return !c.GeneratedID
	case FieldMicrophone:
		return c.Microphone.ID != ""
	case FieldSpeaker:
		return c.Speaker != nil
	case FieldMediaPlayer:
		return c.MediaPlayer != nil
	case FieldSetupPriority:
		return c.SetupPriority != nil
	case FieldNoiseSuppressionLevel, FieldAutoGain, FieldVolumeMultiplier:
		return true
	default:
		_, ok := c.Hooks[field]
		return ok
	}
}

// Hook returns the chain attached to a hook.
func (c *Config) Hook(name string) (*engine.AutomationChain, bool) {
	chain, ok := c.Hooks[name]
	return chain, ok
}

// References lists the object references in resolution order: the
// microphone, then the output if one is set.
func (c *Config) References() []resolver.Request {
	refs := []resolver.Request{{Field: FieldMicrophone, Reference: c.Microphone}}
	if c.Speaker != nil {
		refs = append(refs, resolver.Request{Field: FieldSpeaker, Reference: *c.Speaker})
	}
	if c.MediaPlayer != nil {
		refs = append(refs, resolver.Request{Field: FieldMediaPlayer, Reference: *c.MediaPlayer})
	}
	return refs
}

// Declaration returns the compile-order node for the recorder.
func (c *Config) Declaration() engine.Declaration {
	decl := engine.Declaration{ID: c.ID, Kind: Kind}
	for _, ref := range c.References() {
		decl.References = append(decl.References, engine.FieldReference{Field: ref.Field, ID: ref.Reference.ID})
	}
	return decl
}

// Handle returns the registry entry for the recorder.
func (c *Config) Handle() engine.Handle {
	return engine.Handle{
		ID:           c.ID,
		Type:         InstanceType,
		Capabilities: []engine.Capability{engine.CapabilityAudioRecorder},
	}
}
