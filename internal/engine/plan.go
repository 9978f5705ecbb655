package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/logging"
)

// Kinds whose creation is asynchronous on the provider side; a WAIT follows
// their CREATE so dependents only run against a usable resource.
var waitAfterCreate = map[ir.Kind]string{
	ir.KindTable:    "table must be ACTIVE before dependents can use it",
	ir.KindRole:     "IAM propagation is eventually consistent",
	ir.KindFunction: "function must reach the Active state",
}

// BuildPlan computes the ordered operation list for a stack against the
// current state snapshot. It is pure: no resource-client calls, no mutation.
// Structural errors (cycles) abort before any operation is emitted.
func BuildPlan(spec *ir.StackSpec, snapshot ir.Snapshot, mode ir.Mode) (*ir.Plan, error) {
	plan := &ir.Plan{
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
		Summary:   &ir.PlanSummary{},
	}

	if mode == ir.ModeDestroy {
		if err := planDestroy(plan, snapshot); err != nil {
			return nil, err
		}
		return plan, nil
	}

	logging.Debug("building plan", "resources", len(spec.Resources), "state_entries", len(snapshot))

	graph, err := BuildGraph(spec.Resources)
	if err != nil {
		return nil, err
	}

	specByName := make(map[string]*ir.ResourceSpec, len(spec.Resources))
	for _, res := range spec.Resources {
		specByName[res.Name] = res
	}

	for _, name := range graph.CreationOrder() {
		res := specByName[name]
		hash, err := ConfigHash(res.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to hash config for %s: %w", name, err)
		}

		prior, known := snapshot[name]
		if known && prior.Kind != res.Kind {
			return nil, &KindMismatchError{Name: name, Declared: res.Kind, Recorded: prior.Kind}
		}
		switch {
		case !known:
			appendOp(plan, res, ir.ActionCreate, "not present in state")
		case prior.Status != ir.StatusApplied && prior.RemoteID == "":
			appendOp(plan, res, ir.ActionCreate, "previous attempt did not complete")
		case prior.Status != ir.StatusApplied:
			appendOp(plan, res, ir.ActionUpdate, "previous attempt did not complete")
		case prior.ConfigHash != hash:
			appendOp(plan, res, ir.ActionUpdate, "config changed since last apply")
		default:
			appendOp(plan, res, ir.ActionNoOp, "config unchanged")
		}
	}

	// Orphan cleanup: recorded resources no longer declared in the stack are
	// deleted in a trailing pass, reverse dependency order among themselves.
	orphans := make(ir.Snapshot)
	for name, rs := range snapshot {
		if _, declared := specByName[name]; !declared {
			orphans[name] = rs
		}
	}
	if len(orphans) > 0 {
		orphanGraph, err := BuildGraphFromState(orphans)
		if err != nil {
			return nil, err
		}
		for _, name := range orphanGraph.DestructionOrder() {
			plan.Operations = append(plan.Operations, &ir.Operation{
				Name:   name,
				Kind:   orphans[name].Kind,
				Action: ir.ActionDelete,
				Reason: "no longer declared in stack",
			})
			plan.Summary.Delete++
		}
	}

	return plan, nil
}

func planDestroy(plan *ir.Plan, snapshot ir.Snapshot) error {
	graph, err := BuildGraphFromState(snapshot)
	if err != nil {
		return err
	}
	for _, name := range graph.DestructionOrder() {
		plan.Operations = append(plan.Operations, &ir.Operation{
			Name:   name,
			Kind:   snapshot[name].Kind,
			Action: ir.ActionDelete,
			Reason: "destroy requested",
		})
		plan.Summary.Delete++
	}
	return nil
}

func appendOp(plan *ir.Plan, res *ir.ResourceSpec, action ir.Action, reason string) {
	plan.Operations = append(plan.Operations, &ir.Operation{
		Name:   res.Name,
		Kind:   res.Kind,
		Action: action,
		Reason: reason,
	})

	switch action {
	case ir.ActionCreate:
		plan.Summary.Create++
	case ir.ActionUpdate:
		plan.Summary.Update++
	case ir.ActionNoOp:
		plan.Summary.NoOp++
	}

	if action == ir.ActionCreate {
		if reason, waits := waitAfterCreate[res.Kind]; waits {
			plan.Operations = append(plan.Operations, &ir.Operation{
				Name:   res.Name,
				Kind:   res.Kind,
				Action: ir.ActionWait,
				Reason: reason,
			})
			plan.Summary.Wait++
		}
	}
}

// ConfigHash fingerprints a resource config. The hash is computed over the
// raw declared config (references unresolved), so planning never needs the
// provider. encoding/json sorts map keys, which makes the encoding canonical.
func ConfigHash(config map[string]any) (string, error) {
	if len(config) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
