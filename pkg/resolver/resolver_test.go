package resolver

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/registry"
)

func newTestResolver(t *testing.T, handles ...engine.Handle) *Resolver {
	t.Helper()
	reg := registry.New()
	for _, h := range handles {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Failed to register %s: %v", h.ID, err)
		}
	}
	return New(reg, zerolog.Nop())
}

var (
	mic1 = engine.Handle{ID: "mic1", Type: "microphone", Capabilities: []engine.Capability{engine.CapabilityMicrophone}}
	spk1 = engine.Handle{ID: "spk1", Type: "speaker", Capabilities: []engine.Capability{engine.CapabilitySpeaker}}
)

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t, mic1, spk1)

	tests := []struct {
		name     string
		ref      engine.ObjectReference
		wantKind engine.ErrorKind
	}{
		{name: "microphone", ref: engine.ObjectReference{ID: "mic1", Capability: engine.CapabilityMicrophone}},
		{name: "speaker", ref: engine.ObjectReference{ID: "spk1", Capability: engine.CapabilitySpeaker}},
		{
			name:     "unknown",
			ref:      engine.ObjectReference{ID: "micX", Capability: engine.CapabilityMicrophone},
			wantKind: engine.ErrorKindUnknownReference,
		},
		{
			name:     "capability mismatch",
			ref:      engine.ObjectReference{ID: "spk1", Capability: engine.CapabilityMicrophone},
			wantKind: engine.ErrorKindCapabilityMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.Resolve(tt.ref)
			if tt.wantKind != "" {
				if !engine.IsKind(err, tt.wantKind) {
					t.Fatalf("Expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if h.ID != tt.ref.ID {
				t.Errorf("Expected handle %s, got %s", tt.ref.ID, h.ID)
			}
		})
	}
}

func TestResolver_CapabilityMismatchNamesCapabilities(t *testing.T) {
	r := newTestResolver(t, spk1)

	_, err := r.Resolve(engine.ObjectReference{ID: "spk1", Capability: engine.CapabilityMicrophone})
	ce, ok := engine.AsCompileError(err)
	if !ok {
		t.Fatalf("Expected CompileError, got %v", err)
	}
	if !reflect.DeepEqual(ce.Details["capabilities"], []string{"speaker"}) {
		t.Errorf("Expected found capabilities [speaker], got %v", ce.Details["capabilities"])
	}
	if ce.Details["required"] != "microphone" {
		t.Errorf("Expected required microphone, got %v", ce.Details["required"])
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	r := newTestResolver(t, mic1, spk1)

	deps, err := r.ResolveAll([]Request{
		{Field: "microphone", Reference: engine.ObjectReference{ID: "mic1", Capability: engine.CapabilityMicrophone}},
		{Field: "speaker", Reference: engine.ObjectReference{ID: "spk1", Capability: engine.CapabilitySpeaker}},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(deps) != 2 || deps[0].Field != "microphone" || deps[1].Handle.ID != "spk1" {
		t.Errorf("Unexpected dependencies %+v", deps)
	}
}

func TestResolver_ResolveAll_FirstFailureNoPartial(t *testing.T) {
	r := newTestResolver(t, spk1)

	deps, err := r.ResolveAll([]Request{
		{Field: "microphone", Reference: engine.ObjectReference{ID: "micX", Capability: engine.CapabilityMicrophone}},
		{Field: "speaker", Reference: engine.ObjectReference{ID: "nope", Capability: engine.CapabilitySpeaker}},
	})
	if deps != nil {
		t.Errorf("Expected no partial results, got %+v", deps)
	}
	ce, ok := engine.AsCompileError(err)
	if !ok || ce.Kind != engine.ErrorKindUnknownReference {
		t.Fatalf("Expected UnknownReference, got %v", err)
	}
	if ce.Field != "microphone" || ce.Details["id"] != "micX" {
		t.Errorf("Expected the microphone reference to fail first, got %v", ce)
	}
}

func TestResolver_Sole(t *testing.T) {
	rec := func(id string) engine.Handle {
		return engine.Handle{ID: id, Capabilities: []engine.Capability{engine.CapabilityAudioRecorder}}
	}

	h, err := newTestResolver(t, mic1, rec("rec1")).Sole(engine.CapabilityAudioRecorder)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if h.ID != "rec1" {
		t.Errorf("Expected rec1, got %s", h.ID)
	}

	if _, err := newTestResolver(t, mic1).Sole(engine.CapabilityAudioRecorder); !engine.IsKind(err, engine.ErrorKindUnknownReference) {
		t.Errorf("Expected UnknownReference with no recorder, got %v", err)
	}

	_, err = newTestResolver(t, rec("a"), rec("b")).Sole(engine.CapabilityAudioRecorder)
	ce, ok := engine.AsCompileError(err)
	if !ok || ce.Kind != engine.ErrorKindUnknownReference {
		t.Fatalf("Expected UnknownReference with two recorders, got %v", err)
	}
	if !reflect.DeepEqual(ce.Details["candidates"], []string{"a", "b"}) {
		t.Errorf("Expected candidates [a b], got %v", ce.Details["candidates"])
	}
}
