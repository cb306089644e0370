package hookinstall

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.json")
}

func readSettings(t *testing.T, path string) map[string][]hookMatcher {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	cfg := make(map[string][]hookMatcher)
	require.NoError(t, json.Unmarshal(raw["hooks"], &cfg))
	return cfg
}

func TestInstallCreatesSettings(t *testing.T) {
	path := settingsFile(t)

	n, err := Install(path, 4451, false)
	require.NoError(t, err)
	assert.Equal(t, len(forwardedEvents), n)

	cfg := readSettings(t, path)
	for _, event := range forwardedEvents {
		require.Len(t, cfg[event], 1, "missing forwarder for %s", event)
		assert.Contains(t, cfg[event][0].Hooks[0].Command, "127.0.0.1:4451/hook")
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	path := settingsFile(t)

	_, err := Install(path, 4451, false)
	require.NoError(t, err)
	n, err := Install(path, 4451, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	cfg := readSettings(t, path)
	assert.Len(t, cfg["Stop"], 1)
}

func TestInstallPreservesForeignSettings(t *testing.T) {
	path := settingsFile(t)
	existing := `{
  "model": "opus",
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "other-tool notify"}]}]
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	_, err := Install(path, 4451, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"opus"`, string(raw["model"]))

	cfg := readSettings(t, path)
	require.Len(t, cfg["Stop"], 2)
	assert.Equal(t, "other-tool notify", cfg["Stop"][0].Hooks[0].Command)
}

func TestForceReplacesStalePort(t *testing.T) {
	path := settingsFile(t)
	_, err := Install(path, 9999, false)
	require.NoError(t, err)

	n, err := Install(path, 4451, true)
	require.NoError(t, err)
	assert.Equal(t, len(forwardedEvents), n)

	cfg := readSettings(t, path)
	for _, m := range cfg["Stop"] {
		assert.NotContains(t, m.Hooks[0].Command, "9999")
	}
}

func TestUninstallRemovesOnlyOurs(t *testing.T) {
	path := settingsFile(t)
	existing := `{
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "other-tool notify"}]}]
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))
	_, err := Install(path, 4451, false)
	require.NoError(t, err)

	removed, err := Uninstall(path)
	require.NoError(t, err)
	assert.Equal(t, len(forwardedEvents), removed)

	cfg := readSettings(t, path)
	require.Len(t, cfg["Stop"], 1)
	assert.Equal(t, "other-tool notify", cfg["Stop"][0].Hooks[0].Command)
}

func TestUninstallMissingFile(t *testing.T) {
	removed, err := Uninstall(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}
