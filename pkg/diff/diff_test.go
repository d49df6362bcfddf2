package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnifiedIdenticalContent(t *testing.T) {
	content := []byte("line1\nline2\n")
	require.Empty(t, Unified(content, content, "before", "after"))
}

func TestUnifiedSingleLineChange(t *testing.T) {
	result := Unified([]byte("line1\nline2\nline3\n"), []byte("line1\nmodified\nline3\n"), "before", "after")

	require.Equal(t, "--- before\n+++ after\n@@ -1,3 +1,3 @@\n line1\n-line2\n+modified\n line3\n", result)
}

func TestUnifiedAdditionsAndDeletions(t *testing.T) {
	result := Unified([]byte("a\nb\n"), []byte("a\nb\nc\n"), "x", "y")
	require.Contains(t, result, "+c\n")

	result = Unified([]byte("a\nb\n"), []byte("b\n"), "x", "y")
	require.Contains(t, result, "-a\n")
	require.Contains(t, result, " b\n")
}

func TestUnifiedTruncatesHugeDiffs(t *testing.T) {
	var a, b strings.Builder
	for i := 0; i < maxDiffLines; i++ {
		fmt.Fprintf(&a, "old %d\n", i)
		fmt.Fprintf(&b, "new %d\n", i)
	}
	result := Unified([]byte(a.String()), []byte(b.String()), "a", "b")
	require.True(t, strings.HasSuffix(result, truncateMessage+"\n"))
}

func TestSnapshots(t *testing.T) {
	before := map[string]any{"plan": "free", "visits": 1}
	after := map[string]any{"plan": "pro", "visits": 1, "cart": []any{"mug"}}

	result, err := Snapshots(before, after, "state before", "state after")
	require.NoError(t, err)
	require.Contains(t, result, "--- state before\n")
	require.Contains(t, result, "-plan: free\n")
	require.Contains(t, result, "+plan: pro\n")
	require.Contains(t, result, "+cart:\n")
	require.Contains(t, result, " visits: 1\n")

	result, err = Snapshots(nil, map[string]any{}, "a", "b")
	require.NoError(t, err)
	require.Empty(t, result)
}
