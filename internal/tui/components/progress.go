// Package components holds the render pieces of the dispatch feed.
package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	countStyle  = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Progress shows how much of an action tree has settled. Branches that
// never run keep a finished tree below 100%.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress component for a tree of total actions.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
	return Progress{bar: bar, total: total}
}

// View renders the bar. failed is shown next to the count when non-zero.
func (p Progress) View(settled, failed int) string {
	ratio := 0.0
	if p.total > 0 && settled > 0 {
		ratio = float64(min(settled, p.total)) / float64(p.total)
	}
	parts := []string{countStyle.Render(fmt.Sprintf("%d/%d", settled, p.total)), " ", p.bar.ViewAs(ratio)}
	if failed > 0 {
		parts = append(parts, " ", failedStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
