package errors

import (
	stdErrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorIncludesLine(t *testing.T) {
	t.Parallel()

	err := NewParseError("checkout.yaml", 12, fmt.Errorf("mapping values are not allowed"))
	require.EqualError(t, err, "parse checkout.yaml:12: mapping values are not allowed")

	var parseErr *ParseError
	require.True(t, stdErrors.As(err, &parseErr))
	require.Equal(t, 12, parseErr.Line)
}

func TestParseErrorUnwrapsNotExist(t *testing.T) {
	t.Parallel()

	err := NewParseError("missing.yaml", 0, os.ErrNotExist)
	require.EqualError(t, err, "parse missing.yaml: file does not exist")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDocumentErrorNamesAction(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("url: required field missing")
	err := NewDocumentError("flows.yaml", "checkout", 7, cause)
	require.EqualError(t, err, `flows.yaml:7: action "checkout": url: required field missing`)
	require.ErrorIs(t, err, cause)

	err = NewDocumentError("flows.yaml", "", 0, cause)
	require.EqualError(t, err, "flows.yaml: url: required field missing")
}
