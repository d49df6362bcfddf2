package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/actionflow/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	header := styles.title.Render(fmt.Sprintf("Actionflow • %s", components.Title(m.heading())))
	if !m.finished && !m.nonInteractive {
		header = lipgloss.JoinHorizontal(lipgloss.Left, m.spinner.View(), " ", header)
	}
	sections = append(sections, header)

	progress := components.NewProgress(m.total).View(m.settled, m.failures)
	sections = append(sections, styles.section.Render("Progress"), progress)

	if feed := components.NewFeed(m.feed).View(); feed != "" {
		sections = append(sections, styles.section.Render("Events"), feed)
	}

	summary := components.NewSummary(components.SummaryData{
		Total:     m.total,
		Settled:   m.settled,
		Failures:  m.failures,
		Finished:  m.finished,
		Cancelled: m.cancelled,
		Result:    m.result,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, styles.section.Render("Summary"), styles.summary.Render(m.styleSummary(summary)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) styleSummary(summary string) string {
	switch {
	case m.result == nil:
		return summary
	case m.result.Success:
		return styles.ok.Render(summary)
	default:
		return styles.failed.Render(summary)
	}
}

func (m Model) heading() string {
	if strings.TrimSpace(m.title) != "" {
		return m.title
	}
	return "dispatch"
}
