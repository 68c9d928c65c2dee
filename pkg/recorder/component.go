// Package recorder defines the audio recorder component: its configuration
// fields, automation hooks and build manifest, and the structural validation
// that turns a raw mapping into a Config.
package recorder

import "github.com/openfroyo/recwire/pkg/engine"

// Component identity.
const (
	// Kind is the document section holding recorder declarations.
	Kind = "audio_recorder"

	// InstanceType is the fully qualified type of the emitted instance.
	InstanceType = "audio_recorder::AudioRecorder"

	// DefaultID is used when a single recorder declares no id.
	DefaultID = "audio_recorder"

	// Define is the feature marker emitted with every plan.
	Define = "USE_audio_recorder"

	// TimersDefine is emitted only when timer hooks are wired.
	TimersDefine = "USE_AUDIO_RECORDER_TIMERS"
)

// Configuration keys.
const (
	FieldID                    = "id"
	FieldMicrophone            = "microphone"
	FieldSpeaker               = "speaker"
	FieldMediaPlayer           = "media_player"
	FieldNoiseSuppressionLevel = "noise_suppression_level"
	FieldAutoGain              = "auto_gain"
	FieldVolumeMultiplier      = "volume_multiplier"
	FieldSetupPriority         = "setup_priority"
)

// OutputGroup is the exclusivity group of the output references.
const OutputGroup = "output"

// Hook names.
const (
	HookListening          = "on_listening"
	HookStart              = "on_start"
	HookEnd                = "on_end"
	HookError              = "on_error"
	HookClientConnected    = "on_client_connected"
	HookClientDisconnected = "on_client_disconnected"
	HookIntentStart        = "on_intent_start"
	HookIntentEnd          = "on_intent_end"
	HookIdle               = "on_idle"
	HookTimerStarted       = "on_timer_started"
	HookTimerUpdated       = "on_timer_updated"
	HookTimerCancelled     = "on_timer_cancelled"
	HookTimerFinished      = "on_timer_finished"
	HookTimerTick          = "on_timer_tick"
)

// HookSpec describes an automation hook the component exposes.
type HookSpec struct {
	// Name is the configuration key.
	Name string

	// Getter is the instance accessor returning the trigger.
	Getter string

	// Args is the argument signature passed to the chain.
	Args []engine.Arg

	// Timer marks timer hooks, wired only when timer support is enabled.
	Timer bool

	// Inert hooks are accepted in configuration but never wired.
	Inert bool
}

var timerArgs = []engine.Arg{{Type: "Timer", Name: "timer"}}

// hooks lists every hook in emission order.
var hooks = []HookSpec{
	{Name: HookListening, Getter: "get_listening_trigger"},
	{Name: HookStart, Getter: "get_start_trigger"},
	{Name: HookEnd, Getter: "get_end_trigger"},
	{
		Name:   HookError,
		Getter: "get_error_trigger",
		Args:   []engine.Arg{{Type: "std::string", Name: "code"}, {Type: "std::string", Name: "message"}},
	},
	{Name: HookClientConnected, Getter: "get_client_connected_trigger"},
	{Name: HookClientDisconnected, Getter: "get_client_disconnected_trigger"},
	{Name: HookIdle, Getter: "get_idle_trigger"},
	{Name: HookIntentStart, Inert: true},
	{Name: HookIntentEnd, Inert: true},
	{Name: HookTimerStarted, Getter: "get_timer_started_trigger", Args: timerArgs, Timer: true},
	{Name: HookTimerUpdated, Getter: "get_timer_updated_trigger", Args: timerArgs, Timer: true},
	{Name: HookTimerCancelled, Getter: "get_timer_cancelled_trigger", Args: timerArgs, Timer: true},
	{Name: HookTimerFinished, Getter: "get_timer_finished_trigger", Args: timerArgs, Timer: true},
	{
		Name:   HookTimerTick,
		Getter: "get_timer_tick_trigger",
		Args:   []engine.Arg{{Type: "std::vector<Timer>", Name: "timers"}},
		Timer:  true,
	},
}

// Hooks returns the hook table in emission order.
func Hooks() []HookSpec {
	out := make([]HookSpec, len(hooks))
	for i, h := range hooks {
		h.Args = append([]engine.Arg(nil), h.Args...)
		out[i] = h
	}
	return out
}

// Setters used by the emitter.
const (
	SetMicrophone            = "set_microphone"
	SetSpeaker               = "set_speaker"
	SetMediaPlayer           = "set_media_player"
	SetNoiseSuppressionLevel = "set_noise_suppression_level"
	SetAutoGain              = "set_auto_gain"
	SetVolumeMultiplier      = "set_volume_multiplier"
)

// Manifest returns the component's build metadata.
func Manifest() engine.Manifest {
	return engine.Manifest{
		CodeOwners: []string{"@dr-iot-dev"},
		Requires:   []string{"api", "microphone"},
		AutoLoad:   []string{"mqtt"},
	}
}
