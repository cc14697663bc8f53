package graph

import (
	"strings"
)

// Plan is the composition tree pruned to the tasks of one run. Plans are
// created per trigger and discarded after the run.
type Plan struct {
	Root  Node
	tasks []string
}

// FullPlan returns a plan with every composed task.
func (g *Graph) FullPlan() *Plan {
	return &Plan{Root: g.root, tasks: g.Tasks()}
}

// Induced returns the plan for names: the named tasks plus everything they
// transitively require, ordered exactly as in the full graph. An empty
// name list yields an empty plan.
func (g *Graph) Induced(names []string) (*Plan, error) {
	keep, err := g.Ancestors(names)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keep))
	for _, name := range keep {
		set[name] = true
	}
	return &Plan{Root: prune(g.root, set), tasks: keep}, nil
}

// Tasks returns the planned tasks in composition order.
func (p *Plan) Tasks() []string {
	out := make([]string, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Empty reports whether the plan runs nothing.
func (p *Plan) Empty() bool { return p == nil || p.Root == nil }

// Contains reports whether name is planned.
func (p *Plan) Contains(name string) bool {
	for _, t := range p.tasks {
		if t == name {
			return true
		}
	}
	return false
}

// String renders the plan as an indented tree.
func (p *Plan) String() string {
	if p.Empty() {
		return "(empty)\n"
	}
	var b strings.Builder
	writeNode(&b, p.Root, "", "")
	return b.String()
}

func writeNode(b *strings.Builder, n Node, prefix, childPrefix string) {
	var children []Node
	switch n := n.(type) {
	case *StepNode:
		b.WriteString(prefix + n.Name + "\n")
		return
	case *SeqNode:
		b.WriteString(prefix + "seq\n")
		children = n.Children
	case *ParNode:
		b.WriteString(prefix + "par\n")
		children = n.Children
	}

	for i, c := range children {
		if i == len(children)-1 {
			writeNode(b, c, childPrefix+"└── ", childPrefix+"    ")
		} else {
			writeNode(b, c, childPrefix+"├── ", childPrefix+"│   ")
		}
	}
}
