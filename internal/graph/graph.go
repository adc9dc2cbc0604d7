// Package graph models the dependency graph between packages and computes a
// dependency-first start order.
//
// Edges that point at names which are not nodes of the graph (for example bare
// capabilities registered directly with the injector) are kept for inspection
// but ignored when ordering.
package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Cycle starts and ends with the same
// node, e.g. [a b c a].
type CycleError struct {
	Cycle []string
}

func (e CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// DependencyGraph is an adjacency structure from node name to the names it
// depends on. Nodes remember the order in which they were first added; that
// order breaks ties between independent nodes.
//
// It is not safe for concurrent mutation.
type DependencyGraph struct {
	names []string
	edges map[string][]string
}

func New() *DependencyGraph {
	return &DependencyGraph{edges: make(map[string][]string)}
}

// AddNode adds name with its dependencies. Adding an existing name replaces its
// dependencies but keeps its original position.
func (g *DependencyGraph) AddNode(name string, deps ...string) {
	if _, ok := g.edges[name]; !ok {
		g.names = append(g.names, name)
	}
	cp := make([]string, len(deps))
	copy(cp, deps)
	g.edges[name] = cp
}

func (g *DependencyGraph) Has(name string) bool {
	_, ok := g.edges[name]
	return ok
}

// Nodes returns node names in insertion order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Dependencies returns the immediate dependencies of name, or nil if the node
// does not exist.
func (g *DependencyGraph) Dependencies(name string) []string {
	deps, ok := g.edges[name]
	if !ok {
		return nil
	}
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Dependents returns the nodes that directly depend on name, in insertion order.
func (g *DependencyGraph) Dependents(name string) []string {
	var out []string
	for _, n := range g.names {
		for _, dep := range g.edges[n] {
			if dep == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Order returns every node exactly once such that each node appears after all
// nodes it depends on. Each node's dependencies are expanded depth-first, in
// declaration order, before the node itself is appended.
func (g *DependencyGraph) Order() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(g.names))
	order := make([]string, 0, len(g.names))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return CycleError{Cycle: cyclePath(stack, name)}
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range g.edges[name] {
			if !g.Has(dep) {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range g.names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cyclePath(stack []string, repeated string) []string {
	for i, name := range stack {
		if name == repeated {
			path := make([]string, 0, len(stack)-i+1)
			path = append(path, stack[i:]...)
			return append(path, repeated)
		}
	}
	// Unreachable while visit keeps the stack in sync with the visiting state.
	panic(fmt.Sprintf("graph: %q marked visiting but not on stack", repeated))
}
