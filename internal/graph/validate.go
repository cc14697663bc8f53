package graph

import (
	"fmt"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

type color int

const (
	white color = iota
	gray
	black
)

// Validate fails fast with a cycle error naming the offending edge, or with
// a structural error when a Requires edge is not backed by the composition
// order.
func (g *Graph) Validate() error {
	if err := g.checkCycles(); err != nil {
		return err
	}
	return g.checkRequirementOrder()
}

func (g *Graph) checkCycles() error {
	colors := make(map[string]color, len(g.tasks))
	var stack []string

	var visit func(string) error
	visit = func(u string) error {
		colors[u] = gray
		stack = append(stack, u)

		for _, v := range g.Successors(u) {
			switch colors[v] {
			case gray:
				return pipelineerrors.NewCycleError(u, v, cyclePath(stack, v))
			case white:
				if err := visit(v); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[u] = black
		return nil
	}

	for _, t := range g.tasks {
		if colors[t] == white {
			if err := visit(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(stack []string, start string) []string {
	for i, name := range stack {
		if name == start {
			path := append([]string{}, stack[i:]...)
			return append(path, start)
		}
	}
	return []string{start}
}

func (g *Graph) checkRequirementOrder() error {
	for _, consumer := range g.tasks {
		for _, producer := range g.Requires(consumer) {
			if !g.ordered(producer, consumer) {
				return pipelineerrors.NewStructuralError("UNORDERED_REQUIREMENT",
					fmt.Sprintf("requires %q but the composition does not run it first", producer),
					nil).WithTask(consumer)
			}
		}
	}
	return nil
}

// ordered reports whether from reaches to over ordering edges alone.
func (g *Graph) ordered(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.order[u] {
			if v == to {
				return true
			}
			if !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	return false
}
