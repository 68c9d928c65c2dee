package compiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/openfroyo/recwire/pkg/actions"
	"github.com/openfroyo/recwire/pkg/engine"
)

// Component is the outcome of compiling one recorder declaration.
type Component struct {
	// ID is the recorder ID, explicit or generated.
	ID string `json:"id"`

	// Index is the declaration's position in the document.
	Index int `json:"index"`

	// State is the final lifecycle state.
	State engine.ComponentState `json:"state"`

	// Plan is the emitted plan, nil unless State is emitted.
	Plan *engine.WiringPlan `json:"plan,omitempty"`

	// Err is the failure, nil unless State is failed.
	Err error `json:"-"`
}

// AutomationError is a failure building primitives from one chain.
type AutomationError struct {
	// Location names the chain, "<recorder>.<hook>" or "automations.<n>".
	Location string
	Err      error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one compile run.
type Result struct {
	// RunID identifies the run in logs, traces and history.
	RunID string `json:"run_id"`

	// Source is the document the run compiled.
	Source string `json:"source"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Components lists every recorder declaration in document order.
	Components []*Component `json:"components"`

	// Order is the compile order of validated recorders.
	Order []string `json:"order"`

	// Plans are the emitted plans in compile order.
	Plans []*engine.WiringPlan `json:"plans"`

	// Primitives are the automation primitives built after emission.
	Primitives []*actions.Primitive `json:"primitives"`

	// AutomationErrors lists chains whose primitives could not be built.
	AutomationErrors []*AutomationError `json:"-"`

	// DOT renders the compile-order graph.
	DOT string `json:"-"`

	// Summary holds the run statistics.
	Summary engine.CompileSummary `json:"summary"`
}

func newResult(runID, source string) *Result {
	return &Result{
		RunID:      runID,
		Source:     source,
		StartedAt:  time.Now(),
		Components: make([]*Component, 0),
		Order:      make([]string, 0),
		Plans:      make([]*engine.WiringPlan, 0),
		Primitives: make([]*actions.Primitive, 0),
	}
}

// Component returns the first component with the given ID.
func (r *Result) Component(id string) (*Component, bool) {
	for _, c := range r.Components {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Plan returns the plan emitted for a component.
func (r *Result) Plan(id string) (*engine.WiringPlan, bool) {
	for _, p := range r.Plans {
		if p.Instance.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Failed returns the failed components in document order.
func (r *Result) Failed() []*Component {
	var out []*Component
	for _, c := range r.Components {
		if c.State == engine.ComponentStateFailed {
			out = append(out, c)
		}
	}
	return out
}

// Err joins every component and automation failure, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, c := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", c.ID, c.Err))
	}
	for _, e := range r.AutomationErrors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Status derives the run outcome.
func (r *Result) Status() engine.RunStatus {
	return r.Summary.Status()
}

// Run converts the result into a history record. Failures are keyed by
// component ID; a repeated ID is suffixed with its document index.
func (r *Result) Run() *engine.CompileRun {
	failures := make(map[string]string)
	for _, c := range r.Failed() {
		key := c.ID
		if _, taken := failures[key]; taken {
			key = fmt.Sprintf("%s#%d", c.ID, c.Index)
		}
		failures[key] = c.Err.Error()
	}
	for _, e := range r.AutomationErrors {
		failures[e.Location] = e.Err.Error()
	}

	return &engine.CompileRun{
		ID:        r.RunID,
		Source:    r.Source,
		StartedAt: r.StartedAt,
		Summary:   r.Summary,
		Plans:     r.Plans,
		Failures:  failures,
	}
}
