package engine

import (
	"fmt"
	"strings"

	"github.com/stackform-io/stackform/internal/ir"
)

// KindMismatchError reports a resource redeclared under the same name with a
// different kind. State entries are only meaningful for the kind they were
// recorded with, so planning refuses to diff across kinds; the resource must
// be renamed or destroyed first.
type KindMismatchError struct {
	Name     string
	Declared ir.Kind
	Recorded ir.Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("resource %q is declared as %s but recorded in state as %s; rename it or destroy the old resource first",
		e.Name, e.Declared, e.Recorded)
}

// CycleError reports a dependency cycle, naming the participating resources.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among resources: %s", strings.Join(e.Names, ", "))
}

// PartialApplyError is the aggregate result of a halted run. The state store
// reflects exactly the operations that completed before the failure, so a
// subsequent run reconciles the remainder.
type PartialApplyError struct {
	Completed []string
	Failed    []string
	Skipped   []string
	Pending   []string
	// First is the error that halted (or, with continue-on-error, the first
	// error encountered during) the run.
	First error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("apply incomplete: %d completed, %d failed, %d skipped, %d pending: %v",
		len(e.Completed), len(e.Failed), len(e.Skipped), len(e.Pending), e.First)
}

func (e *PartialApplyError) Unwrap() error { return e.First }
