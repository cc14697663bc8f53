package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Build, then upload the distribution root",
	Long: `Run the full build and upload every file of the distribution root to
the S3-compatible bucket configured in the publish section.

Nothing is uploaded when the build aborts or any task fails.

Environment Variables:
  SITEPIPE_PUBLISH_ENDPOINT     e.g. s3.amazonaws.com or localhost:9000
  SITEPIPE_PUBLISH_BUCKET
  SITEPIPE_PUBLISH_ACCESS_KEY
  SITEPIPE_PUBLISH_SECRET_KEY

Examples:
  sitepipe publish --dry-run     # List the objects that would be uploaded`,
	RunE: runPublish,
}

var (
	publishDryRun bool
	publishFormat formatValue
)

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "List objects without uploading")
	addFormatFlag(publishCmd, &publishFormat)
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	exec, err := a.newExecutor()
	if err != nil {
		return err
	}
	report := exec.Run(cmd.Context(), a.site.Graph.FullPlan())
	if report.Aborted {
		return fmt.Errorf("build aborted: %w", report.Cause)
	}
	if !report.OK() {
		if err := writeReport(cmd.ErrOrStderr(), report, formatTable); err != nil {
			return err
		}
		return fmt.Errorf("refusing to publish: %d tasks failed, %d skipped",
			len(report.Failed()), len(report.Skipped()))
	}

	opts := []publish.Option{
		publish.WithPrefix(a.cfg.Publish.Prefix),
		publish.WithLogger(a.logger),
	}
	var store publish.Store
	if publishDryRun {
		opts = append(opts, publish.DryRun())
	} else {
		s3, err := publish.NewS3Store(a.cfg.Publish)
		if err != nil {
			return err
		}
		store = s3
	}

	objects, err := publish.New(store, opts...).Publish(cmd.Context(), a.cfg.Output.Dist)
	if err != nil {
		return err
	}
	return writeObjects(cmd.OutOrStdout(), objects, publishFormat)
}

func writeObjects(w io.Writer, objects []publish.Object, format formatValue) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(objects)
	case formatYAML:
		return yaml.NewEncoder(w).Encode(objects)
	}

	for _, o := range objects {
		fmt.Fprintf(w, "%s %s\n", nameStyle.UnsetWidth().Render(o.Key),
			dimStyle.Render(fmt.Sprintf("%d bytes, %s", o.Size, o.ContentType)))
	}
	_, err := fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf("%d objects", len(objects))))
	return err
}
