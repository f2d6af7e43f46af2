// Package report renders a pipeline run outcome for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/initializ/convey/pipeline"
)

// Styles holds the lipgloss styles the report is rendered with.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Skipped lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the standard terminal styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f97316")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		Skipped: lipgloss.NewStyle().Foreground(lipgloss.Color("#5a5a70")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a2a3a")).
			Padding(0, 1),
	}
}

// Reporter writes run reports to a terminal.
type Reporter struct {
	w      io.Writer
	styles Styles
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w, styles: DefaultStyles()}
}

// Run renders the full run report: a per-stage outcome table, any warnings,
// and the overall verdict.
func (r *Reporter) Run(project string, number int64, out *pipeline.RunOutcome) {
	var b strings.Builder

	b.WriteString(r.styles.Title.Render(fmt.Sprintf("%s run #%d", project, number)))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, so := range out.Stages {
		if len(so.Stage) > nameWidth {
			nameWidth = len(so.Stage)
		}
	}

	var rows strings.Builder
	for _, so := range out.Stages {
		rows.WriteString(fmt.Sprintf("%s  %-*s  %s\n",
			r.statusMark(so.Status), nameWidth, so.Stage, r.stageDetail(so)))
	}
	b.WriteString(r.styles.Box.Render(strings.TrimRight(rows.String(), "\n")))
	b.WriteString("\n")

	for _, w := range out.Warnings {
		b.WriteString(r.styles.Warning.Render("warning: " + w))
		b.WriteString("\n")
	}

	verdict := r.styles.Success.Render(fmt.Sprintf("succeeded in %s", round(out.Duration)))
	if !out.Success {
		verdict = r.styles.Failure.Render(fmt.Sprintf("failed in %s", round(out.Duration)))
		if failed := out.FailedStage(); failed != nil && failed.Output != "" {
			b.WriteString(r.styles.Dim.Render(failed.Output))
			b.WriteString("\n")
		}
	}
	b.WriteString(verdict)
	b.WriteString("\n")

	fmt.Fprint(r.w, b.String())
}

func (r *Reporter) statusMark(status pipeline.Status) string {
	switch status {
	case pipeline.StatusSucceeded:
		return r.styles.Success.Render("✓")
	case pipeline.StatusFailed:
		return r.styles.Failure.Render("✗")
	default:
		return r.styles.Skipped.Render("-")
	}
}

func (r *Reporter) stageDetail(so pipeline.StageOutcome) string {
	switch so.Status {
	case pipeline.StatusSkipped:
		return r.styles.Skipped.Render("skipped")
	case pipeline.StatusFailed:
		detail := string(so.Kind)
		if so.Error != "" {
			detail = so.Error
		}
		return r.styles.Failure.Render(fmt.Sprintf("%s (%s)", detail, round(so.Duration)))
	default:
		return r.styles.Dim.Render(round(so.Duration).String())
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}
