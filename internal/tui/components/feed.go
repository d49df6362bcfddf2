package components

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
)

var titler = cases.Title(language.English)

// Title turns identifiers such as "CHAIN_COMPLETED" or "checkout-flow" into
// display text.
func Title(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(s))
	return titler.String(s)
}

// FeedEntry is one rendered bus event.
type FeedEntry struct {
	Type   event.Type
	Fields []interface{}
	Failed bool
	At     time.Time
}

// Feed renders the event list.
type Feed struct {
	entries []FeedEntry
}

// NewFeed constructs a feed component.
func NewFeed(entries []FeedEntry) Feed {
	return Feed{entries: entries}
}

// View renders one line per entry.
func (f Feed) View() string {
	lines := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		icon := "•"
		if e.Failed {
			icon = "✗"
		}
		line := fmt.Sprintf(" %s %s", icon, Title(string(e.Type)))
		if kv := formatFields(e.Fields); kv != "" {
			line += "  " + kv
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatFields(fields []interface{}) string {
	parts := make([]string, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v=%v", fields[i], fields[i+1]))
	}
	return strings.Join(parts, " ")
}
