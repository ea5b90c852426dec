// Package report renders measurement log summaries for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusNormal   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusDrowsy   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusNotFound = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Report is the input of Render.
type Report struct {
	Path    string
	Window  time.Duration
	Summary earlog.Summary
	Recent  []earlog.Sample

	// Alerts is the number of alerts in the window, or -1 when unknown.
	Alerts int
}

// Render lays out a summary panel and a recent-samples panel.
func Render(r Report) string {
	title := titleStyle.Render("drowsyctl report")

	summary := panelStyle.Render(renderSummary(r))
	recent := panelStyle.Render(renderRecent(r.Recent))

	return lipgloss.JoinVertical(lipgloss.Left, title, summary, recent) + "\n"
}

func renderSummary(r Report) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Last %s", r.Window)))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	s := r.Summary
	row("Log", r.Path)
	row("Samples", fmt.Sprintf("%d", s.Count))
	if s.Count == 0 {
		row("EAR", "no measurements")
	} else {
		row("Drowsy", fmt.Sprintf("%d (%.1f%%)", s.Drowsy, s.DrowsyRatio*100))
		row("EAR", fmt.Sprintf("mean %.4f  min %.4f  max %.4f", s.MeanEAR, s.MinEAR, s.MaxEAR))
		row("Span", fmt.Sprintf("%s .. %s", s.First.Format(earlog.TimeLayout), s.Last.Format(earlog.TimeLayout)))
	}
	if r.Alerts >= 0 {
		row("Alerts", fmt.Sprintf("%d", r.Alerts))
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderRecent(samples []earlog.Sample) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent samples"))

	if len(samples) == 0 {
		b.WriteString("\n")
		b.WriteString(statusNotFound.Render("none"))
		return b.String()
	}

	for _, s := range samples {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s  %.4f  ", s.Time.Format(earlog.TimeLayout), s.EAR))
		b.WriteString(styleForStatus(s.Status).Render(s.Status.String()))
	}

	return b.String()
}

func styleForStatus(status analyzer.Status) lipgloss.Style {
	switch status {
	case analyzer.Normal:
		return statusNormal
	case analyzer.Drowsy:
		return statusDrowsy
	default:
		return statusNotFound
	}
}
