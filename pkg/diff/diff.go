// Package diff renders line diffs, used to show how a dispatch changed the
// session state.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"
)

const (
	maxDiffLines    = 10000
	truncateMessage = "... (diff truncated, exceeds 10,000 lines) ..."
)

// Unified compares two texts line by line and renders every line with a
// ' ', '-' or '+' prefix under ---/+++ headers. It returns "" when the
// texts are identical and truncates output beyond 10,000 lines.
func Unified(expected, actual []byte, expectedLabel, actualLabel string) string {
	if bytes.Equal(expected, actual) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(string(expected), string(actual))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s\n", expectedLabel)
	fmt.Fprintf(&buf, "+++ %s\n", actualLabel)
	fmt.Fprintf(&buf, "@@ -1,%d +1,%d @@\n", countLines(expected), countLines(actual))

	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range splitLines(d.Text) {
			buf.WriteString(prefix)
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	result := buf.String()
	lines := strings.Split(result, "\n")
	if len(lines) > maxDiffLines {
		return strings.Join(lines[:maxDiffLines], "\n") + "\n" + truncateMessage + "\n"
	}
	return result
}

// Snapshots renders both state maps as YAML, with keys sorted, and diffs them.
func Snapshots(before, after map[string]any, beforeLabel, afterLabel string) (string, error) {
	a, err := render(before)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", beforeLabel, err)
	}
	b, err := render(after)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", afterLabel, err)
	}
	return Unified(a, b, beforeLabel, afterLabel), nil
}

func render(state map[string]any) ([]byte, error) {
	if len(state) == 0 {
		return nil, nil
	}
	return yaml.Marshal(state)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func countLines(data []byte) int {
	return len(splitLines(string(data)))
}
