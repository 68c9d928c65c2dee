package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/recwire/pkg/engine"
)

func testPlan(volume float64, autoGain int, outputs ...string) *engine.WiringPlan {
	plan := &engine.WiringPlan{
		ID:       "plan-1",
		Instance: engine.Instance{ID: "rec", Type: "audio_recorder::AudioRecorder"},
		Bindings: []engine.Binding{
			{Setter: "set_microphone", Field: "microphone", Capability: engine.CapabilityMicrophone, Target: "mic1"},
		},
		Parameters: []engine.Parameter{
			{Name: "noise_suppression_level", Setter: "set_noise_suppression_level", Value: 0},
			{Name: "auto_gain", Setter: "set_auto_gain", Value: autoGain},
			{Name: "volume_multiplier", Setter: "set_volume_multiplier", Value: volume},
		},
	}
	for _, out := range outputs {
		plan.Bindings = append(plan.Bindings, engine.Binding{
			Setter:     "set_" + out,
			Field:      out,
			Capability: engine.Capability(out),
			Target:     out + "1",
		})
	}
	return plan
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func violationsOf(result *engine.PolicyResult, policy string) []engine.PolicyViolation {
	var out []engine.PolicyViolation
	for _, v := range result.Violations {
		if v.Policy == policy {
			out = append(out, v)
		}
	}
	return out
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"gain-stacking", "output-binding", "volume-clipping"}

	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("Expected policy %d to be %s, got %s", i, name, policies[i].Name)
		}
	}
}

func TestEvaluatePlan_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		plan     *engine.WiringPlan
		expected map[string]engine.Severity
	}{
		{
			name:     "clean plan",
			plan:     testPlan(1.0, 0, "speaker"),
			expected: map[string]engine.Severity{},
		},
		{
			name:     "media player counts as output",
			plan:     testPlan(1.0, 0, "media_player"),
			expected: map[string]engine.Severity{},
		},
		{
			name:     "no output",
			plan:     testPlan(1.0, 0),
			expected: map[string]engine.Severity{"output-binding": engine.SeverityInfo},
		},
		{
			name:     "volume clipping",
			plan:     testPlan(4.5, 0, "speaker"),
			expected: map[string]engine.Severity{"volume-clipping": engine.SeverityWarning},
		},
		{
			name:     "volume at limit",
			plan:     testPlan(4.0, 0, "speaker"),
			expected: map[string]engine.Severity{},
		},
		{
			name: "gain stacking",
			plan: testPlan(2.0, 30, "speaker"),
			expected: map[string]engine.Severity{
				"gain-stacking": engine.SeverityWarning,
			},
		},
		{
			name:     "high gain at unity volume",
			plan:     testPlan(1.0, 31, "speaker"),
			expected: map[string]engine.Severity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluatePlan(context.Background(), tt.plan)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if !result.Allowed {
				t.Error("Expected built-in policies never to block a plan")
			}
			if len(result.Violations) != len(tt.expected) {
				t.Fatalf("Expected %d violations, got %+v", len(tt.expected), result.Violations)
			}
			for _, v := range result.Violations {
				want, ok := tt.expected[v.Policy]
				if !ok {
					t.Errorf("Unexpected violation from %s: %s", v.Policy, v.Message)
					continue
				}
				if v.Severity != want {
					t.Errorf("Expected severity %s for %s, got %s", want, v.Policy, v.Severity)
				}
				if v.Message == "" {
					t.Errorf("Expected message for %s", v.Policy)
				}
			}
		})
	}
}

func TestEvaluatePlan_ViolationField(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.EvaluatePlan(context.Background(), testPlan(8, 0, "speaker"))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	found := violationsOf(result, "volume-clipping")
	if len(found) != 1 {
		t.Fatalf("Expected 1 volume-clipping violation, got %d", len(found))
	}
	if found[0].Field != "volume_multiplier" {
		t.Errorf("Expected field volume_multiplier, got %s", found[0].Field)
	}
}

func TestEvaluatePlan_BlockingPolicy(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicies(context.Background(), []Policy{{
		Name:     "require-speaker",
		Severity: engine.SeverityError,
		Enabled:  true,
		Rego: `package site.speaker

has_speaker if {
	some b in input.plan.bindings
	b.field == "speaker"
}

deny contains "a speaker is required" if {
	not has_speaker
}
`,
	}})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	result, err := eng.EvaluatePlan(context.Background(), testPlan(1.0, 0, "media_player"))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected plan to be rejected")
	}

	found := violationsOf(result, "require-speaker")
	if len(found) != 1 || found[0].Message != "a speaker is required" {
		t.Errorf("Unexpected violations: %+v", found)
	}
	if found[0].Severity != engine.SeverityError {
		t.Errorf("Expected error severity, got %s", found[0].Severity)
	}

	result, err = eng.EvaluatePlan(context.Background(), testPlan(1.0, 0, "speaker"))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected plan with speaker to be allowed, got %+v", result.Violations)
	}
}

func TestEvaluatePlan_SeverityOverride(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicies(context.Background(), []Policy{{
		Name:    "context-check",
		Enabled: true,
		Rego: `package site.context

deny contains violation if {
	input.context.operation == "compile"
	input.context.component == "rec"
	violation := {"message": "seen", "severity": "critical"}
}
`,
	}})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	policy, err := eng.GetPolicy("context-check")
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}
	if policy.Severity != engine.SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", policy.Severity)
	}

	result, err := eng.EvaluatePlan(context.Background(), testPlan(1.0, 0, "speaker"))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	found := violationsOf(result, "context-check")
	if len(found) != 1 || found[0].Severity != engine.SeverityCritical {
		t.Fatalf("Expected one critical violation, got %+v", found)
	}
	if result.Allowed {
		t.Error("Expected critical violation to block")
	}
}

func TestAddPolicies_Invalid(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name   string
		policy Policy
	}{
		{"syntax error", Policy{Name: "broken", Rego: "package broken\n\ndeny contains"}},
		{"bad severity", Policy{Name: "sev", Severity: "fatal", Rego: "package sev\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := eng.AddPolicies(context.Background(), []Policy{tt.policy}); err == nil {
				t.Error("Expected error, got nil")
			}
			if _, err := eng.GetPolicy(tt.policy.Name); err == nil {
				t.Error("Expected invalid policy not to be stored")
			}
		})
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	policyName := "output-binding"

	if err := eng.DisablePolicy(policyName); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	result, err := eng.EvaluatePlan(context.Background(), testPlan(1.0, 0))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(violationsOf(result, policyName)) != 0 {
		t.Error("Disabled policy should not generate violations")
	}

	if err := eng.EnablePolicy(policyName); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}

	result, err = eng.EvaluatePlan(context.Background(), testPlan(1.0, 0))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(violationsOf(result, policyName)) != 1 {
		t.Error("Enabled policy should generate a violation")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicies(context.Background(), []Policy{{
		Name:    "extra",
		Enabled: true,
		Rego:    "package extra\n\ndeny contains \"always\" if {\n\ttrue\n}\n",
	}})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}
	if len(eng.ListPolicies()) != 4 {
		t.Fatalf("Expected 4 policies, got %d", len(eng.ListPolicies()))
	}

	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}
	if len(eng.ListPolicies()) != 3 {
		t.Errorf("Expected 3 policies after reload, got %d", len(eng.ListPolicies()))
	}
}

func TestEngineImplementsPolicyEngine(t *testing.T) {
	var _ engine.PolicyEngine = newTestEngine(t)
}
