package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	require.Equal(t, "url: required field missing", NewValidationError("url", "required field missing").Error())
	require.Equal(t, "Action not found: checkout", NewNotFoundError("checkout").Error())
	require.Equal(t, "request failed: connection refused",
		NewNetworkError("request failed", errors.New("connection refused")).Error())
	require.Equal(t, "TIMEOUT", (&Error{Code: ErrCodeTimeout}).Error())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("Chain stopped at action 0: %w", NewAbortError("delay aborted", nil))
	require.ErrorIs(t, err, ErrAborted)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Equal(t, ErrCodeAborted, CodeOf(err))
	require.Equal(t, ErrCodeHandler, CodeOf(errors.New("plain")))
}

func TestWithContextClones(t *testing.T) {
	t.Parallel()

	base := NewPolicyError(KindCustomHTML)
	extended := base.WithContext(map[string]interface{}{"owner": "banner"})
	require.Equal(t, "banner", extended.Context["owner"])
	require.NotContains(t, base.Context, "owner")
}

func TestResultJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Results{
		Succeed(map[string]any{"id": 1}),
		Fail(NewTimeoutError("request timed out after 10s")),
	})
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"success": true, "data": {"id": 1}},
		{"success": false, "error": {"code": "TIMEOUT", "message": "request timed out after 10s"}}
	]`, string(data))
}

func TestChildrenSkipsMissingBranches(t *testing.T) {
	t.Parallel()

	nav := Navigate{URL: "/a"}
	require.Equal(t, []Action{nav}, Children(Conditional{IfTrue: nav}))
	require.Equal(t, []Action{nav}, Children(Delay{Then: nav}))
	require.Empty(t, Children(Log{Message: "leaf"}))
}

func TestCapabilitiesStateWithoutReader(t *testing.T) {
	t.Parallel()

	_, ok := Capabilities{}.State("anything")
	require.False(t, ok)
}

func TestStringifyState(t *testing.T) {
	t.Parallel()

	require.Equal(t, "undefined", StringifyState(nil, false))
	require.Equal(t, "null", StringifyState(nil, true))
	require.Equal(t, "42", StringifyState(42, true))
	require.Equal(t, "a,,1.5", Stringify([]any{"a", nil, 1.5}))
	require.Equal(t, "[object Object]", Stringify(map[string]any{"k": 1}))
}
