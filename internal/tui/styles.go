package tui

import "github.com/charmbracelet/lipgloss"

// palette groups the feed's lipgloss styles.
type palette struct {
	title   lipgloss.Style
	section lipgloss.Style
	ok      lipgloss.Style
	running lipgloss.Style
	failed  lipgloss.Style
	summary lipgloss.Style
}

var styles = palette{
	title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
	section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1),
	ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	running: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	summary: lipgloss.NewStyle().MarginTop(1),
}
