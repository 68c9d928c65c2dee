// Package actions builds the audio recorder's automation primitives: the
// actions and conditions an automation chain may reference by name.
//
// A Primitive refers to its parent recorder by ID only. The parent is looked
// up again at run time through a RuntimeLookup, so primitives never own or
// extend the lifetime of the recorder they act on.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Class distinguishes actions from conditions.
type Class string

const (
	// ClassAction primitives perform an operation.
	ClassAction Class = "action"

	// ClassCondition primitives evaluate to true or false.
	ClassCondition Class = "condition"
)

// Kind names a primitive as it appears in automation chains.
type Kind string

const (
	// KindStartContinuous starts continuous recording.
	KindStartContinuous Kind = "audio_recorder.start_continuous"

	// KindStop stops recording.
	KindStop Kind = "audio_recorder.stop"

	// KindIsRunning is true while the recorder is recording.
	KindIsRunning Kind = "audio_recorder.is_running"

	// KindConnected is true while a client is connected.
	KindConnected Kind = "audio_recorder.connected"
)

type kindSpec struct {
	class    Class
	typeName string
}

var kinds = map[Kind]kindSpec{
	KindStartContinuous: {class: ClassAction, typeName: "audio_recorder::StartContinuousAction"},
	KindStop:            {class: ClassAction, typeName: "audio_recorder::StopAction"},
	KindIsRunning:       {class: ClassCondition, typeName: "audio_recorder::IsRunningCondition"},
	KindConnected:       {class: ClassCondition, typeName: "audio_recorder::ConnectedCondition"},
}

// Kinds returns every registered primitive kind, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks if the kind is registered.
func (k Kind) Validate() error {
	if _, ok := kinds[k]; !ok {
		return fmt.Errorf("invalid primitive kind: %s", k)
	}
	return nil
}

// Class returns whether the kind is an action or a condition.
func (k Kind) Class() Class {
	return kinds[k].class
}

// TypeName returns the target type generated for the kind.
func (k Kind) TypeName() string {
	return kinds[k].typeName
}

// Runtime errors.
var (
	ErrUnknownRecorder = errors.New("recorder is not running in this runtime")
	ErrNotAction       = errors.New("primitive is not an action")
	ErrNotCondition    = errors.New("primitive is not a condition")
)

// Recorder is the run-time surface of an audio recorder instance.
type Recorder interface {
	StartContinuous(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	IsConnected() bool
}

// RuntimeLookup finds live recorder instances by ID.
type RuntimeLookup interface {
	Recorder(id string) (Recorder, bool)
}

// Primitive is a built action or condition bound to a parent recorder.
type Primitive struct {
	// Kind is the primitive variant.
	Kind Kind `json:"kind" yaml:"kind"`

	// Type is the generated target type.
	Type string `json:"type" yaml:"type"`

	// ParentID is the ID of the recorder the primitive acts on.
	ParentID string `json:"parent" yaml:"parent"`
}

// Class returns the primitive's class.
func (p *Primitive) Class() Class {
	return p.Kind.Class()
}

func (p *Primitive) parent(rt RuntimeLookup) (Recorder, error) {
	rec, ok := rt.Recorder(p.ParentID)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", p.Kind, ErrUnknownRecorder, p.ParentID)
	}
	return rec, nil
}

// Play runs an action against its parent recorder.
func (p *Primitive) Play(ctx context.Context, rt RuntimeLookup) error {
	if p.Class() != ClassAction {
		return fmt.Errorf("%s: %w", p.Kind, ErrNotAction)
	}

	rec, err := p.parent(rt)
	if err != nil {
		return err
	}

	switch p.Kind {
	case KindStartContinuous:
		return rec.StartContinuous(ctx)
	case KindStop:
		return rec.Stop(ctx)
	default:
		return fmt.Errorf("%s: %w", p.Kind, ErrNotAction)
	}
}

// Check evaluates a condition against its parent recorder.
func (p *Primitive) Check(ctx context.Context, rt RuntimeLookup) (bool, error) {
	if p.Class() != ClassCondition {
		return false, fmt.Errorf("%s: %w", p.Kind, ErrNotCondition)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rec, err := p.parent(rt)
	if err != nil {
		return false, err
	}

	switch p.Kind {
	case KindIsRunning:
		return rec.IsRunning(), nil
	case KindConnected:
		return rec.IsConnected(), nil
	default:
		return false, fmt.Errorf("%s: %w", p.Kind, ErrNotCondition)
	}
}
