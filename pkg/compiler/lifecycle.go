package compiler

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Lifecycle events.
const (
	eventValidate = "validate"
	eventResolve  = "resolve"
	eventEmit     = "emit"
	eventFail     = "fail"
)

// lifecycle tracks one component through
// declared -> validated -> resolved -> emitted, with failed reachable from
// every non-terminal state. Terminal states have no way out.
type lifecycle struct {
	id  string
	fsm *fsm.FSM
}

// transitionFunc observes every state change.
type transitionFunc func(id string, from, to engine.ComponentState)

func newLifecycle(id string, observe transitionFunc) *lifecycle {
	declared := string(engine.ComponentStateDeclared)
	validated := string(engine.ComponentStateValidated)
	resolved := string(engine.ComponentStateResolved)

	l := &lifecycle{id: id}
	l.fsm = fsm.NewFSM(
		declared,
		fsm.Events{
			{Name: eventValidate, Src: []string{declared}, Dst: validated},
			{Name: eventResolve, Src: []string{validated}, Dst: resolved},
			{Name: eventEmit, Src: []string{resolved}, Dst: string(engine.ComponentStateEmitted)},
			{Name: eventFail, Src: []string{declared, validated, resolved}, Dst: string(engine.ComponentStateFailed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if observe != nil {
					observe(l.id, engine.ComponentState(e.Src), engine.ComponentState(e.Dst))
				}
			},
		},
	)
	return l
}

// State returns the current state.
func (l *lifecycle) State() engine.ComponentState {
	return engine.ComponentState(l.fsm.Current())
}

func (l *lifecycle) fire(ctx context.Context, event string) error {
	if err := l.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("component %s: cannot %s from %s: %w", l.id, event, l.State(), err)
	}
	return nil
}

// fail moves the component to failed. Failing a terminal component is a
// programming error and is reported as such.
func (l *lifecycle) fail(ctx context.Context) error {
	return l.fire(ctx, eventFail)
}
