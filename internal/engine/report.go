package engine

import (
	"time"

	"github.com/stackform-io/stackform/internal/ir"
)

// OperationStatus is the executor-side state machine for one operation:
// PENDING -> RUNNING -> {SUCCEEDED, FAILED, SKIPPED}.
type OperationStatus string

const (
	StatusPending   OperationStatus = "PENDING"
	StatusRunning   OperationStatus = "RUNNING"
	StatusSucceeded OperationStatus = "SUCCEEDED"
	StatusFailed    OperationStatus = "FAILED"
	StatusSkipped   OperationStatus = "SKIPPED"
)

// Outcome is the terminal result of one operation.
type Outcome struct {
	Status   OperationStatus
	Duration time.Duration
	// Reconciled is set when a create found the resource already existing
	// and its real remote ID was read back into the state store.
	Reconciled bool
	Err        error
}

// Summary aggregates a finished (or halted) run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	NoOps     int
	Pending   int
	// FirstError is the first fatal error, if any.
	FirstError error
}

// Reporter observes executor progress. Implementations must not affect
// control flow; the executor never acts on anything a reporter does.
type Reporter interface {
	OnOperationStart(op *ir.Operation)
	OnOperationEnd(op *ir.Operation, outcome Outcome)
	OnPlanComplete(summary Summary)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) OnOperationStart(*ir.Operation)        {}
func (NopReporter) OnOperationEnd(*ir.Operation, Outcome) {}
func (NopReporter) OnPlanComplete(Summary)                {}
