package engine

import (
	"sort"
	"strings"

	"github.com/stackform-io/stackform/internal/ir"
)

// Graph is the dependency graph over resource names used for ordering.
type Graph struct {
	nodes    map[string]*graphNode
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (destruction order)
}

type graphNode struct {
	name     string
	index    int // declaration order, used as a deterministic tie-break
	edges    []string
	revEdges []string
}

// BuildGraph constructs a dependency graph from resource specs. Edges come
// from explicit dependsOn plus implicit ref:// references inside config.
func BuildGraph(resources []*ir.ResourceSpec) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*graphNode)}

	for i, res := range resources {
		g.nodes[res.Name] = &graphNode{name: res.Name, index: i}
	}

	for _, res := range resources {
		node := g.nodes[res.Name]
		for _, dep := range DependencyNames(res) {
			if _, ok := g.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}
	}

	return g, g.finish()
}

// BuildGraphFromState constructs a dependency graph from recorded state
// entries, used for destroy plans and orphan cleanup ordering.
func BuildGraphFromState(snapshot ir.Snapshot) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*graphNode)}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		g.nodes[name] = &graphNode{name: name, index: i}
	}
	for _, name := range names {
		node := g.nodes[name]
		for _, dep := range snapshot[name].Dependencies {
			if _, ok := g.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}
	}

	return g, g.finish()
}

func (g *Graph) finish() error {
	for name, node := range g.nodes {
		for _, dep := range node.edges {
			g.nodes[dep].revEdges = append(g.nodes[dep].revEdges, name)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order

	g.revOrder = make([]string, len(order))
	for i, name := range order {
		g.revOrder[len(order)-1-i] = name
	}
	return nil
}

// CreationOrder returns names in dependency-respecting creation order.
func (g *Graph) CreationOrder() []string { return g.order }

// DestructionOrder returns names in reverse dependency order.
func (g *Graph) DestructionOrder() []string { return g.revOrder }

// Dependencies returns the direct dependencies of a resource.
func (g *Graph) Dependencies(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.edges
	}
	return nil
}

// topoSort is Kahn's algorithm. Among simultaneously ready nodes the one
// declared first wins, so plans are reproducible across runs.
func (g *Graph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		inDegree[name] = len(node.edges)
	}

	var ready []*graphNode
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, g.nodes[name])
		}
	}

	var sorted []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })
		node := ready[0]
		ready = ready[1:]
		sorted = append(sorted, node.name)

		for _, dependent := range node.revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, g.nodes[dependent])
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		var cycle []string
		seen := make(map[string]bool, len(sorted))
		for _, name := range sorted {
			seen[name] = true
		}
		for name := range g.nodes {
			if !seen[name] {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, &CycleError{Names: cycle}
	}

	return sorted, nil
}

// DependencyNames returns the names a spec depends on: explicit dependsOn
// entries plus targets of ref:// values in its config, deduplicated.
func DependencyNames(res *ir.ResourceSpec) []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(name string) {
		if name != "" && name != res.Name && !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}
	for _, dep := range res.DependsOn {
		add(dep)
	}
	for _, ref := range ExtractRefs(res.Config) {
		name, _ := SplitRef(ref)
		add(name)
	}
	return deps
}

// ExtractRefs collects all ref:// values nested anywhere in v.
func ExtractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, refScheme) {
			refs = append(refs, val)
		}
	case map[string]any:
		for _, v := range val {
			refs = append(refs, ExtractRefs(v)...)
		}
	case []any:
		for _, v := range val {
			refs = append(refs, ExtractRefs(v)...)
		}
	}
	return refs
}

const refScheme = "ref://"

// SplitRef decomposes "ref://name/attr" into (name, attr). The attribute is
// empty when the reference addresses the remote ID directly.
func SplitRef(ref string) (name, attr string) {
	if !strings.HasPrefix(ref, refScheme) {
		return "", ""
	}
	rest := ref[len(refScheme):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, ""
}
