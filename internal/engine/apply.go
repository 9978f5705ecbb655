package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/logging"
	"github.com/stackform-io/stackform/pkg/resource"
)

// StateStore is the slice of the state store the executor needs. It is
// mutated exclusively by the executor, one entry at a time, immediately
// after each operation resolves.
type StateStore interface {
	Snapshot() ir.Snapshot
	Record(name string, rs *ir.ResourceState) error
	Remove(name string) error
}

// Executor drives a plan's operations strictly in plan order. Baseline
// scheduling is sequential; dependency ordering already serializes the work
// and stacks are small.
type Executor struct {
	client          resource.Client
	store           StateStore
	reporter        Reporter
	retry           *RetryPolicy
	readyTimeout    time.Duration
	continueOnError bool
}

type ExecutorOption func(*Executor)

// WithReporter attaches a progress observer.
func WithReporter(r Reporter) ExecutorOption {
	return func(e *Executor) { e.reporter = r }
}

// WithRetryPolicy overrides the transient-error retry policy.
func WithRetryPolicy(p *RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.retry = p }
}

// WithContinueOnError keeps the run going past failures, skipping dependents
// of the failed resource and reporting a non-zero aggregate result.
func WithContinueOnError(on bool) ExecutorOption {
	return func(e *Executor) { e.continueOnError = on }
}

// WithReadyTimeout bounds WAIT operations.
func WithReadyTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.readyTimeout = d }
}

func NewExecutor(client resource.Client, store StateStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:       client,
		store:        store,
		reporter:     NopReporter{},
		retry:        DefaultRetryPolicy(),
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run applies the plan. On failure it returns a PartialApplyError whose
// lists, together with the state store, describe exactly how far the run
// got; re-running is always safe because planning diffs idempotently.
// Cancellation is honored between operations, never mid-operation.
func (e *Executor) Run(ctx context.Context, plan *ir.Plan, spec *ir.StackSpec) (*Summary, error) {
	summary := &Summary{}
	partial := &PartialApplyError{}

	// Working copy of the snapshot, kept in lockstep with the store.
	current := e.store.Snapshot()

	specByName := make(map[string]*ir.ResourceSpec)
	if spec != nil {
		for _, res := range spec.Resources {
			specByName[res.Name] = res
		}
	}

	// Names whose operation failed or was skipped in this run; dependents of
	// these are skipped rather than attempted against a broken prerequisite.
	failed := make(map[string]bool)

	halted := false
	for _, op := range plan.Operations {
		if halted {
			summary.Pending++
			partial.Pending = append(partial.Pending, opLabel(op))
			continue
		}

		if err := ctx.Err(); err != nil {
			halted = true
			summary.Pending++
			partial.Pending = append(partial.Pending, opLabel(op))
			if partial.First == nil {
				partial.First = fmt.Errorf("run cancelled: %w", err)
			}
			continue
		}

		if op.Action == ir.ActionNoOp {
			e.reporter.OnOperationStart(op)
			e.reporter.OnOperationEnd(op, Outcome{Status: StatusSkipped})
			summary.NoOps++
			continue
		}

		if blockedBy := e.blockedBy(op, specByName, current, failed); blockedBy != "" {
			e.reporter.OnOperationStart(op)
			e.reporter.OnOperationEnd(op, Outcome{
				Status: StatusSkipped,
				Err:    fmt.Errorf("dependency %s failed earlier in this run", blockedBy),
			})
			failed[op.Name] = true
			summary.Skipped++
			partial.Skipped = append(partial.Skipped, opLabel(op))
			continue
		}

		e.reporter.OnOperationStart(op)
		start := time.Now()
		outcome := e.execute(ctx, op, specByName[op.Name], current)
		outcome.Duration = time.Since(start)
		e.reporter.OnOperationEnd(op, outcome)

		if outcome.Status == StatusFailed {
			logging.Error("operation failed", "resource", op.Name, "action", string(op.Action), "error", outcome.Err)
			failed[op.Name] = true
			summary.Failed++
			partial.Failed = append(partial.Failed, opLabel(op))
			if partial.First == nil {
				partial.First = outcome.Err
			}
			if !e.continueOnError {
				halted = true
			}
			continue
		}

		summary.Succeeded++
		partial.Completed = append(partial.Completed, opLabel(op))
	}

	summary.FirstError = partial.First
	e.reporter.OnPlanComplete(*summary)

	if partial.First != nil {
		return summary, partial
	}
	return summary, nil
}

// blockedBy returns the name of a failed prerequisite, or "" if the
// operation may proceed.
func (e *Executor) blockedBy(op *ir.Operation, specByName map[string]*ir.ResourceSpec, current ir.Snapshot, failed map[string]bool) string {
	switch op.Action {
	case ir.ActionWait:
		// A WAIT is only meaningful if its own create succeeded.
		if failed[op.Name] {
			return op.Name
		}
	case ir.ActionCreate, ir.ActionUpdate:
		if res, ok := specByName[op.Name]; ok {
			for _, dep := range DependencyNames(res) {
				if failed[dep] {
					return dep
				}
			}
		}
	case ir.ActionDelete:
		// Deleting a dependency is unsafe while a failed dependent may
		// still be using it.
		for name, rs := range current {
			if name == op.Name || !failed[name] {
				continue
			}
			for _, dep := range rs.Dependencies {
				if dep == op.Name {
					return name
				}
			}
		}
	}
	return ""
}

func (e *Executor) execute(ctx context.Context, op *ir.Operation, res *ir.ResourceSpec, current ir.Snapshot) Outcome {
	switch op.Action {
	case ir.ActionCreate:
		return e.executeCreate(ctx, op, res, current)
	case ir.ActionUpdate:
		return e.executeUpdate(ctx, op, res, current)
	case ir.ActionDelete:
		return e.executeDelete(ctx, op, current)
	case ir.ActionWait:
		return e.executeWait(ctx, op, current)
	}
	return Outcome{Status: StatusFailed, Err: fmt.Errorf("unknown action %q for %s", op.Action, op.Name)}
}

func (e *Executor) executeCreate(ctx context.Context, op *ir.Operation, res *ir.ResourceSpec, current ir.Snapshot) Outcome {
	config, err := resolveRefs(res.Config, current)
	if err != nil {
		return e.fail(op, res, current, err)
	}

	var result *resource.Result
	err = retryTransient(ctx, e.retry, func() error {
		var createErr error
		result, createErr = e.client.Create(ctx, op.Kind, op.Name, config)
		return createErr
	})

	reconciled := false
	if resource.IsAlreadyExists(err) {
		// The remote exists but we never recorded it. Read the real remote
		// ID back instead of suppressing the signal.
		logging.Info("resource already exists, reconciling into state", "resource", op.Name)
		result, err = e.client.Read(ctx, op.Kind, op.Name, "")
		reconciled = err == nil
	}
	if err != nil {
		return e.fail(op, res, current, err)
	}

	if err := e.recordApplied(op, res, result, current); err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusSucceeded, Reconciled: reconciled}
}

func (e *Executor) executeUpdate(ctx context.Context, op *ir.Operation, res *ir.ResourceSpec, current ir.Snapshot) Outcome {
	prior := current[op.Name]
	remoteID := ""
	if prior != nil {
		remoteID = prior.RemoteID
	}

	config, err := resolveRefs(res.Config, current)
	if err != nil {
		return e.fail(op, res, current, err)
	}

	var result *resource.Result
	err = retryTransient(ctx, e.retry, func() error {
		var updateErr error
		result, updateErr = e.client.Update(ctx, op.Kind, op.Name, remoteID, config)
		return updateErr
	})
	if err != nil {
		return e.fail(op, res, current, err)
	}

	if err := e.recordApplied(op, res, result, current); err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusSucceeded}
}

func (e *Executor) executeDelete(ctx context.Context, op *ir.Operation, current ir.Snapshot) Outcome {
	prior := current[op.Name]
	remoteID := ""
	if prior != nil {
		remoteID = prior.RemoteID
	}

	err := retryTransient(ctx, e.retry, func() error {
		return e.client.Delete(ctx, op.Kind, op.Name, remoteID)
	})
	// Desired absence already holds.
	if resource.IsNotFound(err) {
		err = nil
	}
	if err != nil {
		return e.fail(op, nil, current, err)
	}

	if err := e.store.Remove(op.Name); err != nil {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("failed to remove %s from state: %w", op.Name, err)}
	}
	delete(current, op.Name)
	return Outcome{Status: StatusSucceeded}
}

func (e *Executor) executeWait(ctx context.Context, op *ir.Operation, current ir.Snapshot) Outcome {
	prior := current[op.Name]
	if prior == nil || prior.RemoteID == "" {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("cannot wait for %s: no remote ID recorded", op.Name)}
	}

	if err := e.client.WaitUntilReady(ctx, op.Kind, prior.RemoteID, e.readyTimeout); err != nil {
		return e.fail(op, nil, current, err)
	}
	return Outcome{Status: StatusSucceeded}
}

// fail records the terminal failure in the state store before reporting it,
// so a crash right after still leaves a consistent snapshot.
func (e *Executor) fail(op *ir.Operation, res *ir.ResourceSpec, current ir.Snapshot, cause error) Outcome {
	rs := &ir.ResourceState{
		Name:      op.Name,
		Kind:      op.Kind,
		Status:    ir.StatusFailed,
		UpdatedAt: time.Now().UTC(),
	}
	if prior := current[op.Name]; prior != nil {
		rs.RemoteID = prior.RemoteID
		rs.ConfigHash = prior.ConfigHash
		rs.Outputs = prior.Outputs
		rs.Dependencies = prior.Dependencies
	}
	if res != nil {
		rs.Dependencies = DependencyNames(res)
	}

	if recordErr := e.store.Record(op.Name, rs); recordErr != nil {
		cause = fmt.Errorf("%w (additionally failed to record state: %v)", cause, recordErr)
	}
	current[op.Name] = rs
	return Outcome{Status: StatusFailed, Err: cause}
}

func (e *Executor) recordApplied(op *ir.Operation, res *ir.ResourceSpec, result *resource.Result, current ir.Snapshot) error {
	hash, err := ConfigHash(res.Config)
	if err != nil {
		return fmt.Errorf("failed to hash config for %s: %w", op.Name, err)
	}

	rs := &ir.ResourceState{
		Name:         op.Name,
		Kind:         op.Kind,
		ConfigHash:   hash,
		Status:       ir.StatusApplied,
		Dependencies: DependencyNames(res),
		UpdatedAt:    time.Now().UTC(),
	}
	if result != nil {
		rs.RemoteID = result.RemoteID
		rs.Outputs = result.Outputs
	}
	if rs.RemoteID == "" {
		if prior := current[op.Name]; prior != nil {
			rs.RemoteID = prior.RemoteID
		}
	}

	if err := e.store.Record(op.Name, rs); err != nil {
		return fmt.Errorf("failed to record state for %s: %w", op.Name, err)
	}
	current[op.Name] = rs
	return nil
}

// resolveRefs replaces ref://name/attr values with attributes recorded in
// the snapshot. The default attribute is the remote ID.
func resolveRefs(v any, current ir.Snapshot) (map[string]any, error) {
	resolved, err := resolveValue(v, current)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}
	return resolved.(map[string]any), nil
}

func resolveValue(v any, current ir.Snapshot) (any, error) {
	switch val := v.(type) {
	case string:
		name, attr := SplitRef(val)
		if name == "" {
			return val, nil
		}
		rs, ok := current[name]
		if !ok {
			return nil, fmt.Errorf("reference %q targets a resource with no recorded state", val)
		}
		if attr == "" || attr == "id" {
			return rs.RemoteID, nil
		}
		if out, ok := rs.Outputs[attr]; ok {
			return out, nil
		}
		return nil, fmt.Errorf("reference %q targets an attribute %s never recorded for %s", val, attr, name)
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			resolved, err := resolveValue(v, current)
			if err != nil {
				return nil, err
			}
			newMap[k] = resolved
		}
		return newMap, nil
	case []any:
		newSlice := make([]any, len(val))
		for i, v := range val {
			resolved, err := resolveValue(v, current)
			if err != nil {
				return nil, err
			}
			newSlice[i] = resolved
		}
		return newSlice, nil
	case nil:
		return nil, nil
	default:
		return val, nil
	}
}

func opLabel(op *ir.Operation) string {
	return fmt.Sprintf("%s %s", op.Action, op.Name)
}
