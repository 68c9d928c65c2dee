package policy

import (
	"time"

	"github.com/openfroyo/recwire/pkg/engine"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		volumeClippingPolicy(),
		outputBindingPolicy(),
		gainStackingPolicy(),
	}
}

// volumeClippingPolicy flags volume multipliers likely to clip.
func volumeClippingPolicy() Policy {
	return Policy{
		Name:        "volume-clipping",
		Description: "Warns when the volume multiplier is high enough to clip recorded audio",
		Severity:    engine.SeverityWarning,
		Enabled:     true,
		Tags:        []string{"audio", "levels"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package recwire.policies.volume

deny contains violation if {
	some param in input.plan.parameters
	param.name == "volume_multiplier"
	param.value > 4
	violation := {
		"message": sprintf("volume_multiplier %v on %s is likely to clip", [param.value, input.plan.instance.id]),
		"field": "volume_multiplier",
	}
}
`,
	}
}

// outputBindingPolicy notes recorders without a playback target.
func outputBindingPolicy() Policy {
	return Policy{
		Name:        "output-binding",
		Description: "Notes recorders that have no speaker or media player bound",
		Severity:    engine.SeverityInfo,
		Enabled:     true,
		Tags:        []string{"wiring"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package recwire.policies.output

output_fields := {"speaker", "media_player"}

has_output if {
	some binding in input.plan.bindings
	output_fields[binding.field]
}

deny contains violation if {
	not has_output
	violation := {
		"message": sprintf("%s records without an output device", [input.plan.instance.id]),
	}
}
`,
	}
}

// gainStackingPolicy flags automatic gain combined with an amplifying
// volume multiplier.
func gainStackingPolicy() Policy {
	return Policy{
		Name:        "gain-stacking",
		Description: "Warns when high automatic gain is combined with a volume multiplier above 1",
		Severity:    engine.SeverityWarning,
		Enabled:     true,
		Tags:        []string{"audio", "levels"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package recwire.policies.gain

param(name) := value if {
	some p in input.plan.parameters
	p.name == name
	value := p.value
}

deny contains violation if {
	param("auto_gain") >= 24
	param("volume_multiplier") > 1
	violation := {
		"message": sprintf("auto_gain %vdBFS with volume_multiplier %v on %s stacks gain", [param("auto_gain"), param("volume_multiplier"), input.plan.instance.id]),
		"field": "auto_gain",
	}
}
`,
	}
}
