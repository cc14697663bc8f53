package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/executor"
	"github.com/conneroisu/sitepipe/internal/site"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Build, then check the rendered distribution HTML",
	Long: `Run the full build followed by the markup checks over the rendered
distribution HTML: doctype, lang, title, image alt text, duplicate ids,
unclosed and stray tags and obsolete elements.

The command exits nonzero when the build aborts, when validation could
not run, or when any finding has error severity. Warnings are reported
only.`,
	RunE: runValidate,
}

var validateFormat formatValue

func init() {
	rootCmd.AddCommand(validateCmd)

	addFormatFlag(validateCmd, &validateFormat)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	exec, err := a.newExecutor()
	if err != nil {
		return err
	}

	report := exec.Run(cmd.Context(), a.site.ValidationPlan())
	if err := writeReport(cmd.OutOrStdout(), report, validateFormat); err != nil {
		return err
	}

	if report.Aborted {
		return fmt.Errorf("validation aborted: %w", report.Cause)
	}
	res, ok := report.Result(site.TaskValidate)
	if !ok || res.Status != executor.StatusSucceeded {
		return fmt.Errorf("validation did not run: %s", res.Error())
	}
	if report.HasErrorFindings() {
		errs := 0
		for _, f := range report.Findings {
			if f.Severity >= pipelineerrors.SeverityError {
				errs++
			}
		}
		return fmt.Errorf("validation failed with %d errors", errs)
	}
	return nil
}
