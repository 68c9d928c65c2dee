package engine

import (
	"context"
	"time"
)

// ObjectLookup finds registered objects by ID.
// The registry implements it; the resolver depends only on this view.
type ObjectLookup interface {
	// Lookup returns the handle registered under id.
	Lookup(id string) (Handle, bool)

	// IDs returns every registered ID in registration order.
	IDs() []string
}

// PolicyEngine evaluates emitted wiring plans against policies.
type PolicyEngine interface {
	// EvaluatePlan evaluates policies against a single wiring plan.
	EvaluatePlan(ctx context.Context, plan *WiringPlan) (*PolicyResult, error)

	// LoadPolicies loads policy files.
	LoadPolicies(ctx context.Context, paths []string) error
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed indicates if the plan is accepted.
	Allowed bool `json:"allowed"`

	// Violations lists policy violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the policy name that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity.
	Severity Severity `json:"severity"`

	// Field is the plan field concerned, if the policy names one.
	Field string `json:"field,omitempty"`
}

// RunRecorder persists compile runs and their outputs.
type RunRecorder interface {
	// RecordRun stores a finished compile run with its plans and errors.
	RecordRun(ctx context.Context, run *CompileRun) error
}

// CompileRun is one compilation of a document, as recorded in history.
type CompileRun struct {
	// ID is the unique run identifier.
	ID string `json:"id"`

	// Source is the document path or name.
	Source string `json:"source"`

	// StartedAt is when compilation began.
	StartedAt time.Time `json:"started_at"`

	// Summary holds the run statistics.
	Summary CompileSummary `json:"summary"`

	// Plans are the emitted wiring plans.
	Plans []*WiringPlan `json:"plans,omitempty"`

	// Failures maps component IDs to their error message.
	Failures map[string]string `json:"failures,omitempty"`
}
