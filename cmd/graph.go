package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the task graph",
	Long: `Print the composed task graph as a tree. With --changed, print the plan a
change to the given paths would run in watch mode instead.

Examples:
  sitepipe graph
  sitepipe graph --validation
  sitepipe graph --changed src/data/data.json`,
	RunE: runGraph,
}

var (
	graphChanged    []string
	graphValidation bool
)

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringSliceVar(&graphChanged, "changed", nil, "Show the plan for changes to these paths")
	graphCmd.Flags().BoolVar(&graphValidation, "validation", false, "Show the graph used by validate")
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	var plan *graph.Plan
	switch {
	case len(graphChanged) > 0:
		mapper, err := a.site.Mapper()
		if err != nil {
			return err
		}
		events := make([]watcher.ChangeEvent, 0, len(graphChanged))
		for _, p := range graphChanged {
			abs, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			events = append(events, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: abs})
		}
		plan, err = a.site.Graph.Induced(mapper.Map(events))
		if err != nil {
			return err
		}
	case graphValidation:
		plan = a.site.ValidationPlan()
	default:
		plan = a.site.Graph.FullPlan()
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), plan.String())
	return err
}
