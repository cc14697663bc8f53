package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/executor"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the preview and distribution roots once",
	Long: `Run the full task graph once: clean, then images, styles, scripts and
files in parallel, then the preview and distribution HTML.

A failing task is reported and does not stop its siblings. The command
exits nonzero only when the run aborts on a structural error such as a
missing source directory or an unwritable output root.

Examples:
  sitepipe build                 # Clean and build
  sitepipe build --clean=false   # Build over the existing output
  sitepipe build --format json   # Machine readable report`,
	RunE: runBuild,
}

var (
	buildClean  bool
	buildFormat formatValue
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildClean, "clean", true, "Remove the output roots before building")
	addFormatFlag(buildCmd, &buildFormat)
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	exec, err := a.newExecutor()
	if err != nil {
		return err
	}

	plan, err := a.site.BuildPlan(buildClean)
	if err != nil {
		return err
	}

	report := exec.Run(cmd.Context(), plan)
	if err := writeReport(cmd.OutOrStdout(), report, buildFormat); err != nil {
		return err
	}
	if report.Aborted {
		return fmt.Errorf("build aborted: %w", report.Cause)
	}
	return nil
}

func (a *app) newExecutor(opts ...executor.Option) (*executor.Executor, error) {
	base := []executor.Option{
		executor.WithLogger(a.logger),
		executor.WithMaxParallel(a.cfg.Build.Workers),
		executor.WithCacheSize(a.cfg.Build.CacheSize),
	}
	return executor.New(a.site.Registry, append(base, opts...)...)
}
