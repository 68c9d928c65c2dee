package stores

import (
	"context"
	"errors"
	"time"

	"github.com/openfroyo/recwire/pkg/engine"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the outcome of a compile run.
type RunStatus = engine.RunStatus

const (
	RunStatusSucceeded = engine.RunStatusSucceeded
	RunStatusPartial   = engine.RunStatusPartial
	RunStatusFailed    = engine.RunStatusFailed
)

// StatusOf derives the run status from its summary.
func StatusOf(s engine.CompileSummary) RunStatus {
	return s.Status()
}

// Run is a recorded compile run
type Run struct {
	ID        string                `json:"id"`
	Source    string                `json:"source"`
	Status    RunStatus             `json:"status"`
	StartedAt time.Time             `json:"started_at"`
	Summary   engine.CompileSummary `json:"summary"`
	CreatedAt time.Time             `json:"created_at"`
}

// PlanRecord is a wiring plan stored with a run
type PlanRecord struct {
	RunID       string             `json:"run_id"`
	ComponentID string             `json:"component_id"`
	Plan        *engine.WiringPlan `json:"plan"`
}

// Failure is a component that failed in a run
type Failure struct {
	RunID       string `json:"run_id"`
	ComponentID string `json:"component_id"`
	Message     string `json:"message"`
}

// DiagnosticRecord is a plan diagnostic stored with a run
type DiagnosticRecord struct {
	ID          int64             `json:"id"`
	RunID       string            `json:"run_id"`
	ComponentID string            `json:"component_id"`
	Diagnostic  engine.Diagnostic `json:"diagnostic"`
}

// Store defines the interface for compile history persistence
type Store interface {
	engine.RunRecorder

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// Run contents
	ListPlans(ctx context.Context, runID string) ([]*PlanRecord, error)
	ListFailures(ctx context.Context, runID string) ([]*Failure, error)
	ListDiagnostics(ctx context.Context, runID string, severity *engine.Severity) ([]*DiagnosticRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
