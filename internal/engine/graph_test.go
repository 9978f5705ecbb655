package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
)

func indexOf(names []string, target string) int {
	for i, name := range names {
		if name == target {
			return i
		}
	}
	return -1
}

func TestBuildGraph_NoDependencies(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{Kind: ir.KindTable, Name: "a"},
		{Kind: ir.KindRole, Name: "b"},
		{Kind: ir.KindFunction, Name: "c"},
	}

	graph, err := BuildGraph(resources)
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 3)
	// Independent resources keep declaration order.
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBuildGraph_ExplicitDependsOn(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{Kind: ir.KindFunction, Name: "fn", DependsOn: []string{"role"}},
		{Kind: ir.KindRole, Name: "role"},
		{Kind: ir.KindAPI, Name: "api", DependsOn: []string{"fn"}},
	}

	graph, err := BuildGraph(resources)
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 3)
	assert.Less(t, indexOf(order, "role"), indexOf(order, "fn"), "role should come before fn")
	assert.Less(t, indexOf(order, "fn"), indexOf(order, "api"), "fn should come before api")
}

func TestBuildGraph_ImplicitRef(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{
			Kind: ir.KindFunction,
			Name: "fn",
			Config: map[string]any{
				"role": "ref://role/arn",
				"environment": map[string]any{
					"DYNAMODB_TABLE": "ref://table",
				},
			},
		},
		{Kind: ir.KindRole, Name: "role"},
		{Kind: ir.KindTable, Name: "table"},
	}

	graph, err := BuildGraph(resources)
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 3)
	assert.Less(t, indexOf(order, "role"), indexOf(order, "fn"))
	assert.Less(t, indexOf(order, "table"), indexOf(order, "fn"))
}

func TestBuildGraph_CycleNamesParticipants(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{Kind: ir.KindTable, Name: "a", DependsOn: []string{"b"}},
		{Kind: ir.KindRole, Name: "b", DependsOn: []string{"a"}},
		{Kind: ir.KindFunction, Name: "c"},
	}

	_, err := BuildGraph(resources)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Names)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildGraph_SelfReferenceIsCycle(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{Kind: ir.KindTable, Name: "a", DependsOn: []string{"a"}},
	}

	_, err := BuildGraph(resources)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a"}, cycleErr.Names)
}

func TestDestructionOrder_ReversesCreation(t *testing.T) {
	resources := []*ir.ResourceSpec{
		{Kind: ir.KindRole, Name: "role"},
		{Kind: ir.KindFunction, Name: "fn", DependsOn: []string{"role"}},
		{Kind: ir.KindAPI, Name: "api", Config: map[string]any{"functionArn": "ref://fn/arn"}},
	}

	graph, err := BuildGraph(resources)
	require.NoError(t, err)

	creation := graph.CreationOrder()
	destruction := graph.DestructionOrder()
	require.Len(t, destruction, len(creation))
	for i := range creation {
		assert.Equal(t, creation[i], destruction[len(creation)-1-i])
	}
}

func TestBuildGraphFromState(t *testing.T) {
	snapshot := ir.Snapshot{
		"fn":   {Name: "fn", Kind: ir.KindFunction, Dependencies: []string{"role"}},
		"role": {Name: "role", Kind: ir.KindRole},
	}

	graph, err := BuildGraphFromState(snapshot)
	require.NoError(t, err)

	order := graph.DestructionOrder()
	assert.Less(t, indexOf(order, "fn"), indexOf(order, "role"), "dependent is destroyed first")
}

func TestDependencyNames_Deduplicates(t *testing.T) {
	res := &ir.ResourceSpec{
		Kind:      ir.KindFunction,
		Name:      "fn",
		DependsOn: []string{"role"},
		Config: map[string]any{
			"role":    "ref://role/arn",
			"roleAlt": "ref://role",
			"table":   "ref://table",
		},
	}

	deps := DependencyNames(res)
	assert.ElementsMatch(t, []string{"role", "table"}, deps)
}

func TestSplitRef(t *testing.T) {
	name, attr := SplitRef("ref://table/arn")
	assert.Equal(t, "table", name)
	assert.Equal(t, "arn", attr)

	name, attr = SplitRef("ref://table")
	assert.Equal(t, "table", name)
	assert.Equal(t, "", attr)

	name, attr = SplitRef("not-a-ref")
	assert.Equal(t, "", name)
	assert.Equal(t, "", attr)
}
