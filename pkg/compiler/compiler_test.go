package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/recwire/pkg/actions"
	"github.com/openfroyo/recwire/pkg/config"
	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/policy"
	"github.com/openfroyo/recwire/pkg/telemetry"
)

const devices = `
microphone:
  - id: mic1
    platform: i2s_audio
speaker:
  - id: spk1
    platform: i2s_audio
media_player:
  - id: mp1
    platform: speaker
`

func load(t *testing.T, body string) *config.Document {
	t.Helper()
	doc, err := config.NewLoader(zerolog.Nop()).
		LoadBytes(context.Background(), "test.yaml", config.FormatYAML, []byte(devices+body))
	require.NoError(t, err)
	return doc
}

func compile(t *testing.T, c *Compiler, body string) *Result {
	t.Helper()
	res, err := c.Compile(context.Background(), load(t, body))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

type recordingStore struct {
	runs []*engine.CompileRun
	err  error
}

func (s *recordingStore) RecordRun(_ context.Context, run *engine.CompileRun) error {
	s.runs = append(s.runs, run)
	return s.err
}

func TestCompile_MicrophoneAndSpeaker(t *testing.T) {
	c := New(Options{}, zerolog.Nop())

	res := compile(t, c, `
audio_recorder:
  microphone: mic1
  speaker: spk1
`)

	assert.Equal(t, engine.RunStatusSucceeded, res.Status())
	assert.NoError(t, res.Err())
	require.Len(t, res.Components, 1)

	comp := res.Components[0]
	assert.Equal(t, "audio_recorder", comp.ID)
	assert.Equal(t, engine.ComponentStateEmitted, comp.State)
	require.NotNil(t, comp.Plan)

	plan := comp.Plan
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "audio_recorder", plan.Instance.ID)
	require.Len(t, plan.Bindings, 2)
	assert.Equal(t, "mic1", plan.Bindings[0].Target)
	assert.Equal(t, "set_microphone", plan.Bindings[0].Setter)
	assert.Equal(t, "spk1", plan.Bindings[1].Target)
	assert.Equal(t, "set_speaker", plan.Bindings[1].Setter)
	assert.Empty(t, plan.Triggers)
	assert.False(t, plan.HasTimers)

	assert.Equal(t, []string{"audio_recorder"}, res.Order)
	assert.Equal(t, 1, res.Summary.Components)
	assert.Equal(t, 1, res.Summary.Emitted)
	assert.Equal(t, 0, res.Summary.Failed)
	assert.Contains(t, res.DOT, "mic1")
}

func TestCompile_ComponentFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  engine.ErrorKind
		field string
	}{
		{
			name: "conflicting outputs",
			body: `
audio_recorder:
  id: rec
  microphone: mic1
  speaker: spk1
  media_player: mp1
`,
			kind: engine.ErrorKindConflictingFields,
		},
		{
			name: "unknown reference",
			body: `
audio_recorder:
  id: rec
  microphone: ghost
`,
			kind:  engine.ErrorKindUnknownReference,
			field: "microphone",
		},
		{
			name: "capability mismatch",
			body: `
audio_recorder:
  id: rec
  microphone: spk1
`,
			kind:  engine.ErrorKindCapabilityMismatch,
			field: "microphone",
		},
		{
			name: "missing microphone",
			body: `
audio_recorder:
  id: rec
`,
			kind:  engine.ErrorKindMissingField,
			field: "microphone",
		},
		{
			name: "unknown key",
			body: `
audio_recorder:
  id: rec
  microphone: mic1
  loudness: 11
`,
			kind: engine.ErrorKindUnknownField,
		},
		{
			name: "id taken by a device",
			body: `
audio_recorder:
  id: mic1
  microphone: mic1
`,
			kind:  engine.ErrorKindDuplicateID,
			field: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, New(Options{}, zerolog.Nop()), tt.body)

			require.Len(t, res.Components, 1)
			comp := res.Components[0]
			assert.Equal(t, engine.ComponentStateFailed, comp.State)
			assert.Nil(t, comp.Plan)
			require.Error(t, comp.Err)
			assert.Equal(t, tt.kind, engine.KindOf(comp.Err), "error: %v", comp.Err)

			ce, ok := engine.AsCompileError(comp.Err)
			require.True(t, ok)
			assert.Equal(t, comp.ID, ce.Component)
			if tt.field != "" {
				assert.Equal(t, tt.field, ce.Field)
			}

			assert.Equal(t, engine.RunStatusFailed, res.Status())
			assert.Empty(t, res.Plans)
			assert.Error(t, res.Err())
		})
	}
}

func TestCompile_FailureIsolatedFromSiblings(t *testing.T) {
	res := compile(t, New(Options{}, zerolog.Nop()), `
audio_recorder:
  - id: good
    microphone: mic1
  - id: bad
    microphone: ghost
  - id: good
    microphone: mic1
`)

	require.Len(t, res.Components, 3)
	assert.Equal(t, engine.ComponentStateEmitted, res.Components[0].State)
	assert.Equal(t, engine.ComponentStateFailed, res.Components[1].State)
	assert.Equal(t, engine.ComponentStateFailed, res.Components[2].State)
	assert.True(t, engine.IsKind(res.Components[2].Err, engine.ErrorKindDuplicateID))

	assert.Equal(t, engine.RunStatusPartial, res.Status())
	assert.Equal(t, 1, res.Summary.Emitted)
	assert.Equal(t, 2, res.Summary.Failed)

	run := res.Run()
	assert.Len(t, run.Failures, 2)
	assert.Contains(t, run.Failures, "bad")
	assert.Contains(t, run.Failures, "good")
}

func TestCompile_GeneratedIDs(t *testing.T) {
	res := compile(t, New(Options{}, zerolog.Nop()), `
audio_recorder:
  - microphone: mic1
  - microphone: mic1
    speaker: spk1
`)

	require.Len(t, res.Components, 2)
	assert.Equal(t, "audio_recorder_0", res.Components[0].ID)
	assert.Equal(t, "audio_recorder_1", res.Components[1].ID)
	assert.Equal(t, engine.RunStatusSucceeded, res.Status())
}

func TestCompile_OrderIsDeterministic(t *testing.T) {
	body := `
audio_recorder:
  - id: zeta
    microphone: mic1
  - id: alpha
    microphone: mic1
    media_player: mp1
`
	c := New(Options{}, zerolog.Nop())
	first := compile(t, c, body)
	second := compile(t, c, body)

	assert.Equal(t, []string{"alpha", "zeta"}, first.Order)
	assert.Equal(t, first.Order, second.Order)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.Len(t, first.Plans, 2)
	require.Len(t, second.Plans, 2)
	for i := range first.Plans {
		assert.Equal(t, first.Plans[i].ID, second.Plans[i].ID)
		assert.Equal(t, first.Plans[i], second.Plans[i])
	}

	// Components stay in document order.
	assert.Equal(t, "zeta", first.Components[0].ID)
	assert.Equal(t, "alpha", first.Components[1].ID)
}

func TestCompile_HaltOnError(t *testing.T) {
	c := New(Options{HaltOnError: true}, zerolog.Nop())

	res, err := c.Compile(context.Background(), load(t, `
audio_recorder:
  - id: bad
    microphone: ghost
  - id: good
    microphone: mic1
`))
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.ErrorKindUnknownReference))
	require.NotNil(t, res)

	bad, ok := res.Component("bad")
	require.True(t, ok)
	assert.Equal(t, engine.ComponentStateFailed, bad.State)

	good, ok := res.Component("good")
	require.True(t, ok)
	// Compile order is alphabetical, so good never left validation.
	assert.Equal(t, engine.ComponentStateValidated, good.State)
	assert.Nil(t, good.Plan)
	assert.Equal(t, engine.RunStatusFailed, res.Status())
}

func TestCompile_TimerHooksGated(t *testing.T) {
	body := `
audio_recorder:
  id: rec
  microphone: mic1
  on_timer_finished:
    - audio_recorder.stop: {}
`
	off := compile(t, New(Options{}, zerolog.Nop()), body)
	plan, ok := off.Plan("rec")
	require.True(t, ok)
	assert.False(t, plan.HasTimers)
	assert.Empty(t, plan.Triggers)
	assert.NotEmpty(t, plan.Diagnostics)

	on := compile(t, New(Options{EnableTimers: true}, zerolog.Nop()), body)
	plan, ok = on.Plan("rec")
	require.True(t, ok)
	assert.True(t, plan.HasTimers)
	assert.Len(t, plan.Triggers, 1)
}

func TestCompile_Primitives(t *testing.T) {
	res := compile(t, New(Options{}, zerolog.Nop()), `
audio_recorder:
  id: rec
  microphone: mic1
  on_start:
    - audio_recorder.start_continuous:
        id: rec
  on_end:
    - if:
        condition:
          audio_recorder.is_running: {}
        then:
          - audio_recorder.stop: {}
automations:
  - then:
      - wait_until:
          condition: audio_recorder.connected
`)

	require.Empty(t, res.AutomationErrors)
	kinds := make([]actions.Kind, 0, len(res.Primitives))
	for _, p := range res.Primitives {
		kinds = append(kinds, p.Kind)
		assert.Equal(t, "rec", p.ParentID)
	}
	assert.Equal(t, []actions.Kind{
		actions.KindStartContinuous,
		actions.KindIsRunning,
		actions.KindStop,
		actions.KindConnected,
	}, kinds)
	assert.Equal(t, 4, res.Summary.Primitives)
}

func TestCompile_AutomationErrorsDoNotFailComponents(t *testing.T) {
	res := compile(t, New(Options{}, zerolog.Nop()), `
audio_recorder:
  - id: one
    microphone: mic1
  - id: two
    microphone: mic1
automations:
  - then:
      - audio_recorder.stop: {}
  - then:
      - audio_recorder.stop:
          id: ghost
  - then:
      - audio_recorder.stop:
          id: two
`)

	assert.Equal(t, 0, res.Summary.Failed)
	assert.Equal(t, 2, res.Summary.Emitted)
	require.Len(t, res.AutomationErrors, 2)
	assert.Equal(t, "automations.0", res.AutomationErrors[0].Location)
	assert.Equal(t, "automations.1", res.AutomationErrors[1].Location)
	require.Len(t, res.Primitives, 1)
	assert.Equal(t, "two", res.Primitives[0].ParentID)
	assert.Error(t, res.Err())
}

func TestCompile_PolicyWarningsBecomeDiagnostics(t *testing.T) {
	pe, err := policy.NewEngine(zerolog.Nop())
	require.NoError(t, err)

	body := `
audio_recorder:
  id: rec
  microphone: mic1
  speaker: spk1
  volume_multiplier: 6
`
	withPolicies := compile(t, New(Options{}, zerolog.Nop(), WithPolicyEngine(pe)), body)
	without := compile(t, New(Options{}, zerolog.Nop()), body)

	plan, ok := withPolicies.Plan("rec")
	require.True(t, ok)
	assert.Equal(t, engine.RunStatusSucceeded, withPolicies.Status())

	var found *engine.Diagnostic
	for i := range plan.Diagnostics {
		if plan.Diagnostics[i].Source == "policy:volume-clipping" {
			found = &plan.Diagnostics[i]
		}
	}
	require.NotNil(t, found, "diagnostics: %+v", plan.Diagnostics)
	assert.Equal(t, engine.SeverityWarning, found.Severity)
	assert.Equal(t, "volume_multiplier", found.Field)

	bare, ok := without.Plan("rec")
	require.True(t, ok)
	assert.NotEqual(t, bare.ID, plan.ID)
}

func TestCompile_BlockingPolicy(t *testing.T) {
	pe, err := policy.NewEngine(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, pe.AddPolicies(context.Background(), []policy.Policy{{
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
	}}))

	res := compile(t, New(Options{}, zerolog.Nop(), WithPolicyEngine(pe)), `
audio_recorder:
  - id: quiet
    microphone: mic1
    media_player: mp1
  - id: loud
    microphone: mic1
    speaker: spk1
`)

	quiet, ok := res.Component("quiet")
	require.True(t, ok)
	assert.Equal(t, engine.ComponentStateFailed, quiet.State)
	assert.True(t, engine.IsKind(quiet.Err, engine.ErrorKindPolicyViolation))
	assert.Contains(t, quiet.Err.Error(), "a speaker is required")

	loud, ok := res.Component("loud")
	require.True(t, ok)
	assert.Equal(t, engine.ComponentStateEmitted, loud.State)
	assert.Equal(t, engine.RunStatusPartial, res.Status())
}

func TestCompile_RecordsRun(t *testing.T) {
	store := &recordingStore{}
	res := compile(t, New(Options{}, zerolog.Nop(), WithRunRecorder(store)), `
audio_recorder:
  - id: rec
    microphone: mic1
  - id: broken
    microphone: ghost
`)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, "test.yaml", run.Source)
	assert.Equal(t, 1, run.Summary.Emitted)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Len(t, run.Plans, 1)
	assert.Contains(t, run.Failures, "broken")
}

func TestCompile_RecorderErrorDoesNotFailRun(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	res := compile(t, New(Options{}, zerolog.Nop(), WithRunRecorder(store)), `
audio_recorder:
  microphone: mic1
`)
	assert.Equal(t, engine.RunStatusSucceeded, res.Status())
	assert.Len(t, store.runs, 1)
}

func TestCompile_PublishesEvents(t *testing.T) {
	tel := telemetry.Nop()
	var events []telemetry.Event
	tel.Events.Subscribe(func(e telemetry.Event) { events = append(events, e) }, nil)

	res := compile(t, New(Options{}, zerolog.Nop(), WithTelemetry(tel)), `
audio_recorder:
  - id: rec
    microphone: mic1
  - id: broken
    microphone: ghost
`)

	types := make([]string, 0, len(events))
	for _, e := range events {
		assert.Equal(t, res.RunID, e.RunID)
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		telemetry.EventTypeCompileStarted,
		telemetry.EventTypeComponentFailed,
		telemetry.EventTypeComponentEmitted,
		telemetry.EventTypeCompileCompleted,
	}, types)
}

func TestCompile_InvalidInput(t *testing.T) {
	c := New(Options{}, zerolog.Nop())

	_, err := c.Compile(context.Background(), nil)
	assert.True(t, engine.IsKind(err, engine.ErrorKindInvalidDocument))

	doc := load(t, "")
	doc.Devices = append(doc.Devices, doc.Devices[0])
	res, err := c.Compile(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.ErrorKindDuplicateID))
	require.NotNil(t, res)
	assert.Empty(t, res.Plans)
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}, zerolog.Nop()).Compile(ctx, load(t, `
audio_recorder:
  microphone: mic1
`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	res, err := New(Options{}, zerolog.Nop()).Validate(context.Background(), load(t, `
audio_recorder:
  - id: ok
    microphone: ghost
  - id: clash
    microphone: mic1
    speaker: spk1
    media_player: mp1
`))
	require.NoError(t, err)

	ok, found := res.Component("ok")
	require.True(t, found)
	// References are not resolved during validation.
	assert.Equal(t, engine.ComponentStateValidated, ok.State)

	clash, found := res.Component("clash")
	require.True(t, found)
	assert.Equal(t, engine.ComponentStateFailed, clash.State)
	assert.True(t, engine.IsKind(clash.Err, engine.ErrorKindConflictingFields))

	assert.Empty(t, res.Plans)
	assert.Equal(t, 1, res.Summary.Failed)
}

func TestDefaultID(t *testing.T) {
	assert.Equal(t, "audio_recorder", DefaultID(0, 1))
	assert.Equal(t, "audio_recorder_0", DefaultID(0, 2))
	assert.Equal(t, "audio_recorder_3", DefaultID(3, 4))
}
