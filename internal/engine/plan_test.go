package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
)

func serverlessSpec() *ir.StackSpec {
	return &ir.StackSpec{
		Stack: "items-service",
		Resources: []*ir.ResourceSpec{
			{Kind: ir.KindTable, Name: "table", Config: map[string]any{"tableName": "items"}},
			{Kind: ir.KindRole, Name: "role", Config: map[string]any{
				"inlinePolicies": map[string]any{
					"table-access": map[string]any{"resource": "ref://table/arn"},
				},
			}},
			{Kind: ir.KindFunction, Name: "fn", Config: map[string]any{
				"role": "ref://role/arn",
				"environment": map[string]any{
					"DYNAMODB_TABLE": "ref://table",
				},
			}},
			{Kind: ir.KindAPI, Name: "api", Config: map[string]any{"functionArn": "ref://fn/arn"}},
			{Kind: ir.KindStage, Name: "prod", Config: map[string]any{"restApiId": "ref://api"}},
		},
	}
}

// appliedSnapshot records every spec resource as successfully applied at its
// current config hash.
func appliedSnapshot(t *testing.T, spec *ir.StackSpec) ir.Snapshot {
	t.Helper()
	snapshot := make(ir.Snapshot)
	for _, res := range spec.Resources {
		hash, err := ConfigHash(res.Config)
		require.NoError(t, err)
		snapshot[res.Name] = &ir.ResourceState{
			Name:         res.Name,
			Kind:         res.Kind,
			RemoteID:     "remote-" + res.Name,
			ConfigHash:   hash,
			Status:       ir.StatusApplied,
			Dependencies: DependencyNames(res),
		}
	}
	return snapshot
}

func actionsByName(plan *ir.Plan) map[string]ir.Action {
	actions := make(map[string]ir.Action)
	for _, op := range plan.Operations {
		if op.Action == ir.ActionWait {
			continue
		}
		actions[op.Name] = op.Action
	}
	return actions
}

func TestBuildPlan_FreshStackIsAllCreates(t *testing.T) {
	spec := serverlessSpec()

	plan, err := BuildPlan(spec, ir.Snapshot{}, ir.ModeApply)
	require.NoError(t, err)

	assert.Equal(t, 5, plan.Summary.Create)
	assert.Equal(t, 0, plan.Summary.Update)
	assert.Equal(t, 0, plan.Summary.Delete)
	// Table, role, and function creates are followed by a WAIT.
	assert.Equal(t, 3, plan.Summary.Wait)
	assert.True(t, plan.HasChanges())

	// Dependency order: table and role before fn, fn before api, api before stage.
	var creates []string
	for _, op := range plan.Operations {
		if op.Action == ir.ActionCreate {
			creates = append(creates, op.Name)
		}
	}
	assert.Less(t, indexOf(creates, "table"), indexOf(creates, "fn"))
	assert.Less(t, indexOf(creates, "role"), indexOf(creates, "fn"))
	assert.Less(t, indexOf(creates, "fn"), indexOf(creates, "api"))
	assert.Less(t, indexOf(creates, "api"), indexOf(creates, "prod"))
}

func TestBuildPlan_WaitFollowsItsCreate(t *testing.T) {
	spec := serverlessSpec()

	plan, err := BuildPlan(spec, ir.Snapshot{}, ir.ModeApply)
	require.NoError(t, err)

	for i, op := range plan.Operations {
		if op.Action == ir.ActionWait {
			require.Greater(t, i, 0)
			prev := plan.Operations[i-1]
			assert.Equal(t, ir.ActionCreate, prev.Action)
			assert.Equal(t, op.Name, prev.Name)
		}
	}
}

func TestBuildPlan_UnchangedStackIsAllNoOps(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.NoError(t, err)

	assert.False(t, plan.HasChanges())
	assert.Equal(t, 5, plan.Summary.NoOp)
	assert.Equal(t, 0, plan.Summary.Wait, "no WAIT without a CREATE")
}

func TestBuildPlan_ConfigChangeIsUpdate(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)

	spec.Resource("fn").Config["memoryMB"] = 512

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.NoError(t, err)

	actions := actionsByName(plan)
	assert.Equal(t, ir.ActionUpdate, actions["fn"])
	assert.Equal(t, ir.ActionNoOp, actions["table"])
	assert.Equal(t, ir.ActionNoOp, actions["api"])
	assert.Equal(t, 1, plan.Summary.Update)
}

func TestBuildPlan_FailedWithoutRemoteIDReplansAsCreate(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)
	snapshot["fn"].Status = ir.StatusFailed
	snapshot["fn"].RemoteID = ""

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.NoError(t, err)

	actions := actionsByName(plan)
	assert.Equal(t, ir.ActionCreate, actions["fn"])
}

func TestBuildPlan_FailedWithRemoteIDReplansAsUpdate(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)
	snapshot["fn"].Status = ir.StatusFailed

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.NoError(t, err)

	actions := actionsByName(plan)
	assert.Equal(t, ir.ActionUpdate, actions["fn"])
}

func TestBuildPlan_OrphansAreDeletedInReverseOrder(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)
	snapshot["old-fn"] = &ir.ResourceState{
		Name: "old-fn", Kind: ir.KindFunction, RemoteID: "remote-old-fn",
		Status: ir.StatusApplied, Dependencies: []string{"old-role"},
	}
	snapshot["old-role"] = &ir.ResourceState{
		Name: "old-role", Kind: ir.KindRole, RemoteID: "remote-old-role",
		Status: ir.StatusApplied,
	}

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Summary.Delete)

	var deletes []string
	for _, op := range plan.Operations {
		if op.Action == ir.ActionDelete {
			deletes = append(deletes, op.Name)
		}
	}
	assert.Equal(t, []string{"old-fn", "old-role"}, deletes, "dependent orphan deleted first")
}

func TestBuildPlan_CycleFailsBeforeAnyOperation(t *testing.T) {
	spec := &ir.StackSpec{
		Stack: "cyclic",
		Resources: []*ir.ResourceSpec{
			{Kind: ir.KindTable, Name: "a", DependsOn: []string{"b"}},
			{Kind: ir.KindRole, Name: "b", DependsOn: []string{"a"}},
		},
	}

	plan, err := BuildPlan(spec, ir.Snapshot{}, ir.ModeApply)
	require.Nil(t, plan)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Names)
}

func TestBuildPlan_KindChangeUnderSameNameIsAnError(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)
	// Same name, same config (and so the same hash), but a different kind.
	snapshot["fn"].Kind = ir.KindTable

	plan, err := BuildPlan(spec, snapshot, ir.ModeApply)
	require.Nil(t, plan)

	var mismatchErr *KindMismatchError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, "fn", mismatchErr.Name)
	assert.Equal(t, ir.KindFunction, mismatchErr.Declared)
	assert.Equal(t, ir.KindTable, mismatchErr.Recorded)
}

func TestBuildPlan_KindChangeWithChangedConfigIsAnError(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)
	snapshot["fn"].Kind = ir.KindTable
	spec.Resource("fn").Config["memoryMB"] = 512

	_, err := BuildPlan(spec, snapshot, ir.ModeApply)
	var mismatchErr *KindMismatchError
	require.ErrorAs(t, err, &mismatchErr)
}

func TestBuildPlan_DestroyReversesDependencyOrder(t *testing.T) {
	spec := serverlessSpec()
	snapshot := appliedSnapshot(t, spec)

	plan, err := BuildPlan(spec, snapshot, ir.ModeDestroy)
	require.NoError(t, err)

	assert.Equal(t, ir.ModeDestroy, plan.Mode)
	assert.Equal(t, 5, plan.Summary.Delete)

	var deletes []string
	for _, op := range plan.Operations {
		require.Equal(t, ir.ActionDelete, op.Action)
		deletes = append(deletes, op.Name)
	}
	assert.Less(t, indexOf(deletes, "prod"), indexOf(deletes, "api"))
	assert.Less(t, indexOf(deletes, "api"), indexOf(deletes, "fn"))
	assert.Less(t, indexOf(deletes, "fn"), indexOf(deletes, "role"))
	assert.Less(t, indexOf(deletes, "fn"), indexOf(deletes, "table"))
}

func TestBuildPlan_DestroyEmptyStateIsEmpty(t *testing.T) {
	plan, err := BuildPlan(serverlessSpec(), ir.Snapshot{}, ir.ModeDestroy)
	require.NoError(t, err)
	assert.Empty(t, plan.Operations)
	assert.False(t, plan.HasChanges())
}

func TestConfigHash_Deterministic(t *testing.T) {
	a := map[string]any{"x": 1, "y": map[string]any{"z": "v"}}
	b := map[string]any{"y": map[string]any{"z": "v"}, "x": 1}

	hashA, err := ConfigHash(a)
	require.NoError(t, err)
	hashB, err := ConfigHash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)

	empty, err := ConfigHash(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}
