// Package tui renders a live feed of one dispatch: a spinner while it runs,
// a progress bar over the action tree, the events published on the bus and
// a closing summary.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
	"github.com/alexisbeaulieu97/actionflow/internal/tui/components"
)

// FeedLimit caps the number of events kept on screen.
const FeedLimit = 20

// EventMsg carries one bus event into the program.
type EventMsg struct {
	Event event.Event
	At    time.Time
}

// SettledMsg reports that one action in the tree finished.
type SettledMsg struct {
	Kind    action.Kind
	Success bool
	Elapsed time.Duration
}

// DoneMsg carries the final result of the root dispatch.
type DoneMsg struct {
	Result action.Result
}

// Model is the bubbletea state of the dispatch feed.
type Model struct {
	title          string
	spinner        spinner.Model
	feed           []components.FeedEntry
	total          int
	settled        int
	failures       int
	result         *action.Result
	finished       bool
	cancelled      bool
	nonInteractive bool
}

// NewModel creates a feed for dispatching root.
func NewModel(title string, root action.Action, nonInteractive bool) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.running
	return Model{
		title:          title,
		spinner:        s,
		total:          CountActions(root),
		nonInteractive: nonInteractive,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	if m.nonInteractive {
		return nil
	}
	return m.spinner.Tick
}

// CountActions returns the number of nodes in the tree under root. Branches
// that never run are counted too, so a finished feed may settle fewer.
func CountActions(root action.Action) int {
	if root == nil {
		return 0
	}
	n := 1
	for _, child := range action.Children(root) {
		n += CountActions(child)
	}
	return n
}

// Settled returns the number of actions that finished.
func (m Model) Settled() int {
	return m.settled
}

// Total returns the size of the action tree.
func (m Model) Total() int {
	return m.total
}

// IsFinished reports whether the root dispatch has settled or was cancelled.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the feed.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Subscribe forwards every bus event to send and returns a function that
// removes the listeners again.
func Subscribe(bus ports.EventBus, send func(tea.Msg)) func() {
	ids := make(map[event.Type]string, len(event.Types))
	for _, typ := range event.Types {
		ids[typ] = bus.On(typ, func(_ context.Context, ev event.Event) error {
			send(EventMsg{Event: ev, At: time.Now()})
			return nil
		})
	}
	return func() {
		for typ, id := range ids {
			bus.Off(typ, id)
		}
	}
}

func (m *Model) push(entry components.FeedEntry) {
	m.feed = append(m.feed, entry)
	if len(m.feed) > FeedLimit {
		m.feed = m.feed[len(m.feed)-FeedLimit:]
	}
}
