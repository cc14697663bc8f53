package graph

// Node is an element of a composition: a single task or a sequential or
// parallel group of nodes.
type Node interface {
	// Tasks returns the task names below the node in composition order.
	Tasks() []string
	isNode()
}

// StepNode runs one task.
type StepNode struct {
	Name string
}

// SeqNode runs its children strictly one after the other. Every task of
// child i completes before any task of child i+1 starts.
type SeqNode struct {
	Children []Node
}

// ParNode runs its children concurrently and completes when all of them
// have completed.
type ParNode struct {
	Children []Node
}

// Step names a single task.
func Step(name string) Node { return &StepNode{Name: name} }

// Seq composes nodes sequentially.
func Seq(nodes ...Node) Node { return &SeqNode{Children: nodes} }

// Par composes nodes in parallel.
func Par(nodes ...Node) Node { return &ParNode{Children: nodes} }

func (n *StepNode) Tasks() []string { return []string{n.Name} }
func (n *SeqNode) Tasks() []string  { return childTasks(n.Children) }
func (n *ParNode) Tasks() []string  { return childTasks(n.Children) }

func (*StepNode) isNode() {}
func (*SeqNode) isNode()  {}
func (*ParNode) isNode()  {}

func childTasks(children []Node) []string {
	var names []string
	for _, c := range children {
		names = append(names, c.Tasks()...)
	}
	return names
}

// sources are the tasks of n that nothing else in n precedes.
func sources(n Node) []string {
	switch n := n.(type) {
	case *StepNode:
		return []string{n.Name}
	case *SeqNode:
		for _, c := range n.Children {
			if s := sources(c); len(s) > 0 {
				return s
			}
		}
	case *ParNode:
		var s []string
		for _, c := range n.Children {
			s = append(s, sources(c)...)
		}
		return s
	}
	return nil
}

// sinks are the tasks of n that precede nothing else in n.
func sinks(n Node) []string {
	switch n := n.(type) {
	case *StepNode:
		return []string{n.Name}
	case *SeqNode:
		for i := len(n.Children) - 1; i >= 0; i-- {
			if s := sinks(n.Children[i]); len(s) > 0 {
				return s
			}
		}
	case *ParNode:
		var s []string
		for _, c := range n.Children {
			s = append(s, sinks(c)...)
		}
		return s
	}
	return nil
}

// prune keeps the tasks in keep. Empty groups vanish and single-child
// groups collapse into their child; both preserve the ordering among the
// kept tasks.
func prune(n Node, keep map[string]bool) Node {
	switch n := n.(type) {
	case *StepNode:
		if keep[n.Name] {
			return n
		}
		return nil
	case *SeqNode:
		children := pruneAll(n.Children, keep)
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return &SeqNode{Children: children}
	case *ParNode:
		children := pruneAll(n.Children, keep)
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return &ParNode{Children: children}
	}
	return nil
}

func pruneAll(nodes []Node, keep map[string]bool) []Node {
	var out []Node
	for _, c := range nodes {
		if p := prune(c, keep); p != nil {
			out = append(out, p)
		}
	}
	return out
}
