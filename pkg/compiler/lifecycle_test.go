package compiler

import (
	"context"
	"testing"

	"github.com/openfroyo/recwire/pkg/engine"
)

func TestLifecycle_HappyPath(t *testing.T) {
	var seen []engine.ComponentState
	l := newLifecycle("rec", func(id string, _, to engine.ComponentState) {
		if id != "rec" {
			t.Errorf("Expected id rec, got %s", id)
		}
		seen = append(seen, to)
	})

	if l.State() != engine.ComponentStateDeclared {
		t.Fatalf("Expected declared, got %s", l.State())
	}

	ctx := context.Background()
	for _, event := range []string{eventValidate, eventResolve, eventEmit} {
		if err := l.fire(ctx, event); err != nil {
			t.Fatalf("Failed to %s: %v", event, err)
		}
	}

	want := []engine.ComponentState{
		engine.ComponentStateValidated,
		engine.ComponentStateResolved,
		engine.ComponentStateEmitted,
	}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d transitions, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestLifecycle_FailFromEveryActiveState(t *testing.T) {
	tests := []struct {
		name   string
		events []string
	}{
		{"declared", nil},
		{"validated", []string{eventValidate}},
		{"resolved", []string{eventValidate, eventResolve}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := newLifecycle("rec", nil)
			for _, event := range tt.events {
				if err := l.fire(ctx, event); err != nil {
					t.Fatalf("Failed to %s: %v", event, err)
				}
			}
			if err := l.fail(ctx); err != nil {
				t.Fatalf("Expected fail to succeed, got %v", err)
			}
			if l.State() != engine.ComponentStateFailed {
				t.Errorf("Expected failed, got %s", l.State())
			}
		})
	}
}

func TestLifecycle_TerminalStates(t *testing.T) {
	ctx := context.Background()

	emitted := newLifecycle("rec", nil)
	for _, event := range []string{eventValidate, eventResolve, eventEmit} {
		if err := emitted.fire(ctx, event); err != nil {
			t.Fatalf("Failed to %s: %v", event, err)
		}
	}
	if err := emitted.fail(ctx); err == nil {
		t.Error("Expected error failing an emitted component")
	}

	failed := newLifecycle("rec", nil)
	if err := failed.fail(ctx); err != nil {
		t.Fatalf("Failed to fail: %v", err)
	}
	if err := failed.fire(ctx, eventValidate); err == nil {
		t.Error("Expected error validating a failed component")
	}
}

func TestLifecycle_SkippedStage(t *testing.T) {
	l := newLifecycle("rec", nil)
	if err := l.fire(context.Background(), eventEmit); err == nil {
		t.Error("Expected error emitting a declared component")
	}
	if l.State() != engine.ComponentStateDeclared {
		t.Errorf("Expected state unchanged, got %s", l.State())
	}
}
