package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/tui/components"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case EventMsg:
		m.push(components.FeedEntry{
			Type:   msg.Event.EventType(),
			Fields: event.Fields(msg.Event),
			Failed: isFailure(msg.Event),
			At:     msg.At,
		})
		return m, nil
	case SettledMsg:
		m.settled++
		if !msg.Success {
			m.failures++
		}
		return m, nil
	case DoneMsg:
		res := msg.Result
		m.result = &res
		m.finished = true
		if m.nonInteractive {
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}

func isFailure(ev event.Event) bool {
	switch e := ev.(type) {
	case event.APIError, event.AnalyticsFailed, event.PixelFailed, event.ChainStopped,
		event.ActionError, event.HTMLError, event.IframeError:
		return true
	case event.ChainStepCompleted:
		return !e.Success
	}
	return false
}
