package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/config"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
)

const checkoutDoc = `name: checkout
state:
  plan: free
actions:
  upgrade:
    type: chain
    actions:
      - type: setState
        key: plan
        value: pro
      - type: navigate
        url: /welcome
  broken:
    type: conditional
    condition: stateMatches
    key: plan
    pattern: "^p"
    ifTrue:
      type: redirect
      url: https://example.com/pro
`

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDispatchNamedActionPlainOutput(t *testing.T) {
	path := writeDoc(t, "checkout.yaml", checkoutDoc)

	out, err := executeCommand(newRootCmd(), "dispatch", path, "upgrade")
	require.NoError(t, err)
	require.Contains(t, out, "Actionflow • Upgrade")
	require.Contains(t, out, "3/3")
	require.Contains(t, out, "Dispatch succeeded")
	require.Contains(t, out, "navigate /welcome\n")
}

func TestDispatchDiffShowsStateChange(t *testing.T) {
	path := writeDoc(t, "checkout.yaml", checkoutDoc)

	out, err := executeCommand(newRootCmd(), "dispatch", path, "upgrade", "--diff")
	require.NoError(t, err)
	require.Contains(t, out, "--- state before\n+++ state after\n")
	require.Contains(t, out, "-plan: free\n")
	require.Contains(t, out, "+plan: pro\n")
}

func TestDispatchRawJSONOutput(t *testing.T) {
	out, err := executeCommand(newRootCmd(), "dispatch", "--json",
		"--state", `{"user":{"name":"Ada"}}`,
		"--raw", `{"type":"setState","key":"user","value":{"plan":"pro"},"merge":true}`)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Success bool `json:"success"`
		} `json:"result"`
		State map[string]any `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.True(t, decoded.Result.Success)
	require.Equal(t, map[string]any{"user": map[string]any{"name": "Ada", "plan": "pro"}}, decoded.State)
}

func TestDispatchReportsFailure(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "dispatch", "--raw", `{"type":"navigate"}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "dispatch failed")
	require.Contains(t, err.Error(), "url")

	_, err = executeCommand(newRootCmd(), "dispatch", "--raw", `{"type":"customHtml","html":"<b>hi</b>"}`)
	require.ErrorContains(t, err, "blocked by policy")

	_, err = executeCommand(newRootCmd(), "dispatch", "--allow-custom-html", "--raw", `{"type":"customHtml","html":"<b>hi</b>"}`)
	require.NoError(t, err)
}

func TestDispatchArgumentErrors(t *testing.T) {
	path := writeDoc(t, "checkout.yaml", checkoutDoc)

	_, err := executeCommand(newRootCmd(), "dispatch")
	require.ErrorContains(t, err, "document path or --raw")

	_, err = executeCommand(newRootCmd(), "dispatch", path, "--raw", `{}`)
	require.ErrorContains(t, err, "cannot be combined")

	_, err = executeCommand(newRootCmd(), "dispatch", path)
	require.ErrorContains(t, err, "has no root action; name one of: upgrade, broken")

	_, err = executeCommand(newRootCmd(), "dispatch", path, "missing")
	require.ErrorContains(t, err, "missing")

	_, err = executeCommand(newRootCmd(), "dispatch", "--raw", `not json`)
	require.ErrorContains(t, err, "parse --raw")
}

func TestValidateCommand(t *testing.T) {
	good := writeDoc(t, "good.yaml", checkoutDoc)
	bad := writeDoc(t, "bad.yaml", "actions:\n  go:\n    type: navigate\n")

	out, err := executeCommand(newRootCmd(), "validate", good)
	require.NoError(t, err)
	require.Equal(t, "✓ "+good+" (2 actions)\n", out)

	out, err = executeCommand(newRootCmd(), "validate", good, bad, filepath.Dir(bad))
	require.ErrorContains(t, err, "2 of 3 documents invalid")
	require.Contains(t, out, "✗ ")
	require.Contains(t, out, "url: required field missing")
}

func TestRootRejectsInvalidLogFlags(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "--log-level", "loud", "version")
	require.ErrorContains(t, err, "invalid config")

	_, err = executeCommand(newRootCmd(), "--log-format", "json", "-v", "version")
	require.NoError(t, err)
}

func TestVersionCommandOutputsBuildInfo(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	t.Cleanup(func() {
		version, commit, date = originalVersion, originalCommit, originalDate
	})

	version = "1.2.3"
	commit = "abcdef1"
	date = "2026-10-03"

	out, err := executeCommand(newRootCmd(), "version")
	require.NoError(t, err)
	require.Contains(t, out, "Actionflow 1.2.3")
	require.Contains(t, out, "abcdef1")
	require.Contains(t, out, "2026-10-03")
	require.NotContains(t, out, "action kinds")

	out, err = executeCommand(newRootCmd(), "version", "--kinds")
	require.NoError(t, err)
	require.Contains(t, out, "action kinds: ")
	require.Contains(t, out, "customHtml")
}

func TestSessionFactoryPersistsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := &app{cfg: config.Config{RedisPrefix: "test:"}, logger: logging.NewNoOpLogger()}
	ctx := context.Background()

	first, err := sessionFactory(a, client)(ctx, "visitor-1")
	require.NoError(t, err)
	require.NoError(t, first.Capabilities().SetState("plan", "pro", false))
	require.True(t, mr.Exists("test:visitor-1"))

	// A fresh factory, as after a restart, reads the same hash back.
	second, err := sessionFactory(a, client)(ctx, "visitor-1")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"plan": "pro"}, second.State())

	other, err := sessionFactory(a, client)(ctx, "visitor-2")
	require.NoError(t, err)
	require.Empty(t, other.State())
}

func TestSessionFactoryReusesMemorySessions(t *testing.T) {
	a := &app{logger: logging.NewNoOpLogger()}
	factory := sessionFactory(a, nil)

	s1, err := factory(context.Background(), "x")
	require.NoError(t, err)
	s2, err := factory(context.Background(), "x")
	require.NoError(t, err)
	require.Same(t, s1, s2)
}
