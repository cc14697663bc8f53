package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/executor"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	nameStyle    = lipgloss.NewStyle().Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Width(11)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Width(11)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0B03A")).Width(11)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	summaryStyle = lipgloss.NewStyle().Bold(true)
)

var titleCase = cases.Title(language.English)

// reportView is the serialized form of a report; errors become strings.
type reportView struct {
	Results  []resultView             `json:"results" yaml:"results"`
	Findings []pipelineerrors.Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
	Aborted  bool                     `json:"aborted" yaml:"aborted"`
	Cause    string                   `json:"cause,omitempty" yaml:"cause,omitempty"`
	Duration string                   `json:"duration" yaml:"duration"`
}

type resultView struct {
	Name     string   `json:"name" yaml:"name"`
	Status   string   `json:"status" yaml:"status"`
	Duration string   `json:"duration" yaml:"duration"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Outputs  []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

func newReportView(r *executor.Report) reportView {
	v := reportView{
		Findings: r.Findings,
		Aborted:  r.Aborted,
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	if r.Cause != nil {
		v.Cause = r.Cause.Error()
	}
	for _, res := range r.Results {
		v.Results = append(v.Results, resultView{
			Name:     res.Name,
			Status:   string(res.Status),
			Duration: res.Duration.Round(time.Millisecond).String(),
			Error:    res.Error(),
			Outputs:  res.Outputs,
		})
	}
	return v
}

// writeReport renders r to w in the given format.
func writeReport(w io.Writer, r *executor.Report, format formatValue) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newReportView(r))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newReportView(r)); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderTable(r))
		return err
	}
}

func renderTable(r *executor.Report) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(nameStyle.Render("TASK") + fmt.Sprintf("%-11s", "STATUS") + "DURATION"))
	b.WriteString("\n")

	for _, res := range r.Results {
		b.WriteString(nameStyle.Render(res.Name))
		b.WriteString(statusStyle(res.Status).Render(titleCase.String(string(res.Status))))
		b.WriteString(dimStyle.Render(res.Duration.Round(time.Millisecond).String()))
		b.WriteString("\n")
		if res.Err != nil {
			b.WriteString(dimStyle.Render("  " + res.Error()))
			b.WriteString("\n")
		}
	}

	if len(r.Findings) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(fmt.Sprintf("%d findings", len(r.Findings))))
		b.WriteString("\n")
		for _, f := range r.Findings {
			b.WriteString("  " + f.String() + "\n")
		}
	}

	b.WriteString("\n")
	if r.Aborted {
		b.WriteString(failStyle.UnsetWidth().Render("Aborted: " + causeOf(r)))
	} else {
		b.WriteString(summaryStyle.Render(fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
			len(r.Results)-len(r.Failed())-len(r.Skipped()), len(r.Failed()), len(r.Skipped()),
			r.Duration.Round(time.Millisecond))))
	}
	b.WriteString("\n")
	return b.String()
}

func statusStyle(s executor.Status) lipgloss.Style {
	switch s {
	case executor.StatusSucceeded:
		return okStyle
	case executor.StatusFailed:
		return failStyle
	default:
		return skipStyle
	}
}

func causeOf(r *executor.Report) string {
	if r.Cause == nil {
		return "unknown cause"
	}
	return r.Cause.Error()
}
