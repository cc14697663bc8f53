//go:build property

package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sitepipe/internal/registry"
)

// layered builds Seq(Par(layer0...), Par(layer1...), ...) with width[i]
// tasks in layer i, and makes every task of layer i>0 require the first
// task of layer i-1 when wire is set.
func layered(widths []int, wire bool) (*registry.Registry, Node, [][]string) {
	reg := registry.New()
	var layers [][]string
	var groups []Node
	for i, w := range widths {
		var names []string
		var steps []Node
		for j := 0; j < w; j++ {
			name := fmt.Sprintf("t%d_%d", i, j)
			task := &registry.Task{Name: name}
			if wire && i > 0 {
				task.Requires = []string{layers[i-1][0]}
			}
			reg.MustRegister(task)
			names = append(names, name)
			steps = append(steps, Step(name))
		}
		layers = append(layers, names)
		groups = append(groups, Par(steps...))
	}
	return reg, Seq(groups...), layers
}

func TestGraphProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1337)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	widths := gen.SliceOfN(4, gen.IntRange(1, 4))

	properties.Property("layered compositions validate", prop.ForAll(
		func(w []int, wire bool) bool {
			reg, root, _ := layered(w, wire)
			g, err := Compose(reg, root)
			return err == nil && g.Validate() == nil
		},
		widths, gen.Bool(),
	))

	properties.Property("an edge from the last layer to the first closes a cycle", prop.ForAll(
		func(w []int) bool {
			reg, root, layers := layered(w, false)
			g, err := Compose(reg, root)
			if err != nil {
				return false
			}
			last := layers[len(layers)-1][0]
			if err := g.AddEdge(last, layers[0][0]); err != nil {
				return false
			}
			return g.Validate() != nil
		},
		widths,
	))

	properties.Property("induced plans are subsequences of the full order", prop.ForAll(
		func(w []int, pick []int) bool {
			reg, root, _ := layered(w, true)
			g, err := Compose(reg, root)
			if err != nil {
				return false
			}
			all := g.Tasks()
			var names []string
			for _, p := range pick {
				names = append(names, all[p%len(all)])
			}
			plan, err := g.Induced(names)
			if err != nil {
				return false
			}

			i := 0
			for _, task := range plan.Tasks() {
				for i < len(all) && all[i] != task {
					i++
				}
				if i == len(all) {
					return false
				}
			}
			for _, n := range names {
				if !plan.Contains(n) {
					return false
				}
			}
			return len(plan.Root.Tasks()) == len(plan.Tasks())
		},
		widths, gen.SliceOfN(3, gen.IntRange(0, 100)),
	))

	properties.Property("requirements are always planned", prop.ForAll(
		func(w []int, layer int) bool {
			reg, root, layers := layered(w, true)
			g, err := Compose(reg, root)
			if err != nil {
				return false
			}
			target := layers[layer%len(layers)]
			plan, err := g.Induced(target[len(target)-1:])
			if err != nil {
				return false
			}
			for i := 0; i <= layer%len(layers); i++ {
				if !plan.Contains(layers[i][0]) {
					return false
				}
			}
			return true
		},
		widths, gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
