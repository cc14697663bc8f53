package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/executor"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w", "serve"},
	Short:   "Build, then rebuild on change and serve the preview root",
	Long: `Run the full build, serve the preview root with live reload and watch
the sources. Each burst of changes reruns only the affected tasks and the
tasks they require; connected browsers reload when the rebuild finishes.

A run that aborts is logged and watching continues.

Examples:
  sitepipe watch
  sitepipe watch --port 3000 --open
  sitepipe watch --debounce 500ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addServeFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	bindServeFlags(cmd)

	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg, a.logger)
	exec, err := a.newExecutor(executor.WithNotifier(srv))
	if err != nil {
		return err
	}

	report := exec.Run(ctx, a.site.Graph.FullPlan())
	logReport(ctx, a, report, exec.Metrics())

	mapper, err := a.site.Mapper()
	if err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(a.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)

	for _, root := range mapper.Roots() {
		if ok, _ := afero.DirExists(afero.NewOsFs(), root); !ok {
			a.logger.Warn(ctx, nil, "Watch root does not exist, skipping", "root", root)
			continue
		}
		if err := fw.AddRoot(root); err != nil {
			return err
		}
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	scheduler := watcher.NewScheduler(a.site.Graph, mapper, exec, a.cfg.Watch.Debounce,
		watcher.WithSchedulerLogger(a.logger),
		watcher.OnComplete(func(r *executor.Report) {
			logReport(ctx, a, r, exec.Metrics())
			if !r.Aborted {
				srv.NotifyClients()
			}
		}),
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(ctx) }()

	schedErr := make(chan error, 1)
	go func() { schedErr <- scheduler.Run(ctx, fw.Events()) }()

	var runErr error
	select {
	case runErr = <-serveErr:
		stop()
		<-schedErr
	case <-ctx.Done():
		<-schedErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, err, "Preview server shutdown failed")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// logReport summarizes a run and the totals since watching started. Aborted
// runs are errors; watching continues.
func logReport(ctx context.Context, a *app, r *executor.Report, m executor.Metrics) {
	logger := a.logger.WithComponent("watch")
	if r.Aborted {
		logger.Error(ctx, r.Cause, "Build aborted")
		return
	}
	for _, res := range r.Failed() {
		logger.Warn(ctx, res.Err, "Task failed", "task", res.Name)
	}
	for _, f := range r.Findings {
		logger.Info(ctx, "Finding", "finding", f.String())
	}
	logger.Info(ctx, "Build finished",
		"tasks", len(r.Results),
		"failed", len(r.Failed()),
		"skipped", len(r.Skipped()),
		"duration_ms", r.Duration.Milliseconds(),
		"runs", m.Runs,
		"cache_hit_rate", fmt.Sprintf("%.1f%%", m.CacheHitRate()))
}
