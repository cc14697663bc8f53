// Package graph composes registered tasks into an ordering graph and derives
// build plans from it.
//
// Ordering edges come from composition: Seq orders consecutive elements and
// Par leaves its members unordered. Requires edges come from the task
// declarations. A graph is valid when it is acyclic and every Requires edge
// agrees with the composition order, so a consumer never reads a producer's
// output while the producer may still be writing it.
package graph

import (
	"fmt"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/registry"
)

// Graph is a composition of tasks plus the edges derived from it.
type Graph struct {
	reg  *registry.Registry
	root Node

	tasks    []string
	position map[string]int

	// order holds ordering edges (composition and AddEdge), requires holds
	// the declared data edges from producer to consumer.
	order    map[string][]string
	requires map[string][]string
}

// Compose builds the graph of root over the tasks of reg. Every name must be
// registered and appear once. Requires edges must name tasks of the same
// composition.
func Compose(reg *registry.Registry, root Node) (*Graph, error) {
	g := &Graph{
		reg:      reg,
		root:     root,
		position: make(map[string]int),
		order:    make(map[string][]string),
		requires: make(map[string][]string),
	}

	for _, name := range root.Tasks() {
		if _, err := reg.Resolve(name); err != nil {
			return nil, err
		}
		if _, dup := g.position[name]; dup {
			return nil, pipelineerrors.NewStructuralError("DUPLICATE_STEP",
				"task appears more than once in the composition", nil).WithTask(name)
		}
		g.position[name] = len(g.tasks)
		g.tasks = append(g.tasks, name)
	}

	g.addOrderEdges(root)

	for _, name := range g.tasks {
		task, _ := reg.Resolve(name)
		for _, req := range task.Requires {
			if _, ok := g.position[req]; !ok {
				if _, err := reg.Resolve(req); err != nil {
					return nil, fmt.Errorf("task %q requires: %w", name, err)
				}
				return nil, pipelineerrors.NewStructuralError("REQUIREMENT_NOT_COMPOSED",
					fmt.Sprintf("required task %q is not part of the composition", req), nil).WithTask(name)
			}
			g.requires[req] = appendUnique(g.requires[req], name)
		}
	}

	return g, nil
}

func (g *Graph) addOrderEdges(n Node) {
	switch n := n.(type) {
	case *SeqNode:
		for i, c := range n.Children {
			g.addOrderEdges(c)
			if i == 0 {
				continue
			}
			for _, from := range sinks(n.Children[i-1]) {
				for _, to := range sources(c) {
					g.order[from] = appendUnique(g.order[from], to)
				}
			}
		}
	case *ParNode:
		for _, c := range n.Children {
			g.addOrderEdges(c)
		}
	}
}

// AddEdge adds an ordering edge between two composed tasks. Added edges
// take part in validation; execution follows the composition tree.
func (g *Graph) AddEdge(from, to string) error {
	for _, name := range []string{from, to} {
		if _, ok := g.position[name]; !ok {
			return pipelineerrors.NewUnknownTaskError(name)
		}
	}
	g.order[from] = appendUnique(g.order[from], to)
	return nil
}

// Root returns the composition tree.
func (g *Graph) Root() Node { return g.root }

// Registry returns the registry the graph was composed over.
func (g *Graph) Registry() *registry.Registry { return g.reg }

// Tasks returns every composed task in composition order.
func (g *Graph) Tasks() []string {
	out := make([]string, len(g.tasks))
	copy(out, g.tasks)
	return out
}

// Successors returns the direct successors of name over ordering and
// requires edges.
func (g *Graph) Successors(name string) []string {
	var out []string
	for _, s := range g.order[name] {
		out = appendUnique(out, s)
	}
	for _, s := range g.requires[name] {
		out = appendUnique(out, s)
	}
	return out
}

// Predecessors returns the direct predecessors of name in composition
// order.
func (g *Graph) Predecessors(name string) []string {
	var out []string
	for _, t := range g.tasks {
		for _, s := range g.Successors(t) {
			if s == name {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Requires returns the tasks name declares as requirements.
func (g *Graph) Requires(name string) []string {
	task, err := g.reg.Resolve(name)
	if err != nil {
		return nil
	}
	return task.Requires
}

// Ancestors returns names together with every task they transitively
// require, in composition order. Pure ordering predecessors are not
// ancestors: a change to html does not rerun clean.
func (g *Graph) Ancestors(names []string) ([]string, error) {
	seen := make(map[string]bool)
	var visit func(string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		if _, ok := g.position[name]; !ok {
			return pipelineerrors.NewUnknownTaskError(name)
		}
		seen[name] = true
		for _, req := range g.Requires(name) {
			if err := visit(req); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(seen))
	for _, t := range g.tasks {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
