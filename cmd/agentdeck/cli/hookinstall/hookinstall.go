// Package hookinstall wires the agent's hook configuration to forward
// events to the daemon. It edits ~/.claude/settings.json in place,
// preserving every setting it does not own.
package hookinstall

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/jsonutil"
)

// forwardedEvents are the hook events the daemon consumes. Each gets one
// forwarder entry with an empty matcher (all tools).
var forwardedEvents = []string{
	hooks.EventSessionStart,
	hooks.EventUserPromptSubmit,
	hooks.EventPreToolUse,
	hooks.EventPermissionRequest,
	hooks.EventPostToolUse,
	hooks.EventPostToolUseFailure,
	hooks.EventStop,
	hooks.EventSessionEnd,
	hooks.EventPreCompact,
	hooks.EventNotification,
}

// forwarderMarker identifies our entries among foreign hooks, both for
// idempotence and for --force removal.
const forwarderMarker = "/hook"

type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type hookMatcher struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []hookEntry `json:"hooks"`
}

// SettingsPath returns the agent settings file the installer edits.
func SettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// ForwarderCommand builds the shell one-liner that POSTs the hook's stdin
// payload to the daemon. It must never fail the agent: short timeout,
// errors swallowed.
func ForwarderCommand(hookPort int) string {
	return fmt.Sprintf(
		`sh -c 'curl -fsS -m 2 -X POST http://127.0.0.1:%d%s -H "Content-Type: application/json" --data-binary @- >/dev/null 2>&1 || true'`,
		hookPort, forwarderMarker)
}

// Install merges forwarder entries into settingsPath. Existing entries,
// including other tools' hooks, are preserved; force first removes stale
// forwarders (e.g. pointing at an old port). Returns how many entries
// were added.
func Install(settingsPath string, hookPort int, force bool) (int, error) {
	raw := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(settingsPath); err == nil { //nolint:gosec // fixed settings location
		if err := json.Unmarshal(data, &raw); err != nil {
			return 0, fmt.Errorf("parse %s: %w", settingsPath, err)
		}
	}

	hooksCfg := make(map[string][]hookMatcher)
	if hooksRaw, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, &hooksCfg); err != nil {
			return 0, fmt.Errorf("parse hooks in %s: %w", settingsPath, err)
		}
	}

	if force {
		for event, matchers := range hooksCfg {
			hooksCfg[event] = removeForwarders(matchers)
		}
	}

	command := ForwarderCommand(hookPort)
	count := 0
	for _, event := range forwardedEvents {
		if containsCommand(hooksCfg[event], command) {
			continue
		}
		hooksCfg[event] = append(hooksCfg[event], hookMatcher{
			Hooks: []hookEntry{{Type: "command", Command: command}},
		})
		count++
	}
	if count == 0 {
		return 0, nil
	}

	hooksJSON, err := json.Marshal(hooksCfg)
	if err != nil {
		return 0, fmt.Errorf("marshal hooks: %w", err)
	}
	raw["hooks"] = hooksJSON

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o750); err != nil {
		return 0, fmt.Errorf("create settings directory: %w", err)
	}
	if err := jsonutil.WriteFileAtomic(settingsPath, raw); err != nil {
		return 0, err
	}
	return count, nil
}

// Uninstall removes every forwarder entry. Returns how many were removed.
func Uninstall(settingsPath string) (int, error) {
	data, err := os.ReadFile(settingsPath) //nolint:gosec // fixed settings location
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse %s: %w", settingsPath, err)
	}
	hooksCfg := make(map[string][]hookMatcher)
	if hooksRaw, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, &hooksCfg); err != nil {
			return 0, fmt.Errorf("parse hooks in %s: %w", settingsPath, err)
		}
	}

	removed := 0
	for event, matchers := range hooksCfg {
		kept := removeForwarders(matchers)
		removed += len(matchers) - len(kept)
		if len(kept) == 0 {
			delete(hooksCfg, event)
		} else {
			hooksCfg[event] = kept
		}
	}
	if removed == 0 {
		return 0, nil
	}

	hooksJSON, err := json.Marshal(hooksCfg)
	if err != nil {
		return 0, fmt.Errorf("marshal hooks: %w", err)
	}
	raw["hooks"] = hooksJSON
	if err := jsonutil.WriteFileAtomic(settingsPath, raw); err != nil {
		return 0, err
	}
	return removed, nil
}

// isForwarder reports whether a matcher block belongs to us.
func isForwarder(m hookMatcher) bool {
	for _, h := range m.Hooks {
		if strings.Contains(h.Command, forwarderMarker) && strings.Contains(h.Command, "curl") {
			return true
		}
	}
	return false
}

func removeForwarders(matchers []hookMatcher) []hookMatcher {
	kept := matchers[:0:0]
	for _, m := range matchers {
		if !isForwarder(m) {
			kept = append(kept, m)
		}
	}
	return kept
}

func containsCommand(matchers []hookMatcher, command string) bool {
	for _, m := range matchers {
		for _, h := range m.Hooks {
			if h.Command == command {
				return true
			}
		}
	}
	return false
}
