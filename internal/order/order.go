// Package order sorts declarations so every by-value dependency precedes
// its dependent.
package order

import (
	"sort"

	"github.com/okra-platform/cbind/internal/model"
)

// Graph is an index-based dependency graph. Node indices are the original
// declaration order; an edge from a to b means a needs b's full definition.
type Graph struct {
	names []string
	deps  [][]int
}

// NewGraph creates a graph with one node per name
func NewGraph(names []string) *Graph {
	return &Graph{
		names: names,
		deps:  make([][]int, len(names)),
	}
}

// AddEdge records that from needs the full definition of to
func (g *Graph) AddEdge(from, to int) {
	for _, d := range g.deps[from] {
		if d == to {
			return
		}
	}
	g.deps[from] = append(g.deps[from], to)
}

// Len returns the number of nodes
func (g *Graph) Len() int { return len(g.names) }

const (
	white = iota
	gray
	black
)

// Sort returns node indices in dependency order. Unrelated nodes keep their
// original order: roots are visited in ascending index and so are each
// node's dependencies. A by-value cycle is reported as a
// *model.CyclicDependencyError listing its members in cycle order.
func (g *Graph) Sort() ([]int, error) {
	for _, d := range g.deps {
		sort.Ints(d)
	}

	color := make([]int, len(g.names))
	out := make([]int, 0, len(g.names))
	var stack []int

	var visit func(n int) error
	visit = func(n int) error {
		color[n] = gray
		stack = append(stack, n)

		for _, d := range g.deps[n] {
			switch color[d] {
			case gray:
				return g.cycle(stack, d)
			case white:
				if err := visit(d); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[n] = black
		out = append(out, n)
		return nil
	}

	for n := range g.names {
		if color[n] != white {
			continue
		}
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cycle builds the error for the cycle closing at start
func (g *Graph) cycle(stack []int, start int) error {
	var members []string
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == start {
			for _, n := range stack[i:] {
				members = append(members, g.names[n])
			}
			break
		}
	}
	return &model.CyclicDependencyError{Members: members}
}
