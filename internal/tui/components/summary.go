package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Total     int
	Settled   int
	Failures  int
	Finished  bool
	Cancelled bool
	Result    *action.Result
}

// Summary renders a textual dispatch summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	var lines []string
	if s.data.Total > 0 {
		lines = append(lines, fmt.Sprintf("Actions: %d/%d settled, %d failed", s.data.Settled, s.data.Total, s.data.Failures))
	}

	switch {
	case s.data.Cancelled:
		lines = append(lines, "Dispatch cancelled")
	case s.data.Result != nil && s.data.Result.Success:
		lines = append(lines, "Dispatch succeeded")
	case s.data.Result != nil:
		lines = append(lines, fmt.Sprintf("Dispatch failed [%s]: %s", action.CodeOf(s.data.Result.Err), s.data.Result.ErrorMessage()))
	}

	return strings.Join(lines, "\n")
}
