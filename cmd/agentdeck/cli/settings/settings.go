// Package settings provides configuration loading for the daemon.
// Settings live in <config-dir>/settings.json with optional overrides in
// settings.local.json (not synced between machines). Flags override
// settings; environment variables override both.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/paths"
)

// File names under the config directory.
const (
	SettingsFileName      = "settings.json"
	SettingsLocalFileName = "settings.local.json"
)

// Summarizer backends.
const (
	SummarizerAnthropic = "anthropic"
	SummarizerClaudeCLI = "claude-cli"
	SummarizerOff       = "off"
)

// Settings represents the settings.json configuration.
type Settings struct {
	// HookPort is the loopback port for POST /hook and GET /logs.
	HookPort int `json:"hook_port,omitempty"`

	// StreamPort is the loopback port for the snapshot stream.
	StreamPort int `json:"stream_port,omitempty"`

	// DebounceMs coalesces transcript file-change events per file.
	DebounceMs int `json:"debounce_ms,omitempty"`

	// PermissionDelayMs is the permission-request debounce. Tools that
	// auto-approve within this window never surface as needing approval.
	PermissionDelayMs int `json:"permission_delay_ms,omitempty"`

	// StaleCheckIntervalMs is how often the registry sweep runs.
	StaleCheckIntervalMs int `json:"stale_check_interval_ms,omitempty"`

	// StaleThresholdMs is how long a working session may be silent before
	// the sweep fires a STOP on its behalf.
	StaleThresholdMs int `json:"stale_threshold_ms,omitempty"`

	// IdleDisplayThresholdMs is consumer-side guidance for hiding idle
	// sessions; the daemon surfaces it on the health endpoint but does not
	// act on it.
	IdleDisplayThresholdMs int `json:"idle_display_threshold_ms,omitempty"`

	// TranscriptsDir overrides the watched transcript root.
	TranscriptsDir string `json:"transcripts_dir,omitempty"`

	// LogLevel sets logging verbosity (debug, info, warn, error).
	// Can be overridden by AGENTDECK_LOG_LEVEL.
	LogLevel string `json:"log_level,omitempty"`

	// Summarizer selects the goal/summary backend:
	// "anthropic", "claude-cli", or "off".
	Summarizer string `json:"summarizer,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not configured (disabled), true = opted in, false = opted out.
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Default returns the built-in defaults.
func Default() *Settings {
	return &Settings{
		HookPort:               4451,
		StreamPort:             4450,
		DebounceMs:             200,
		PermissionDelayMs:      3000,
		StaleCheckIntervalMs:   10_000,
		StaleThresholdMs:       60_000,
		IdleDisplayThresholdMs: 3_600_000,
		LogLevel:               "info",
		Summarizer:             SummarizerAnthropic,
	}
}

// Load loads settings from the config directory, applying local overrides.
// Missing files yield defaults; a corrupt base file is an error.
func Load() (*Settings, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return Default(), nil
	}
	return LoadFromDir(dir)
}

// LoadFromDir loads settings from a specific directory.
func LoadFromDir(dir string) (*Settings, error) {
	s, err := loadFromFile(filepath.Join(dir, SettingsFileName))
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(filepath.Join(dir, SettingsLocalFileName)) //nolint:gosec // fixed name under config dir
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else if err := json.Unmarshal(localData, s); err != nil {
		return nil, fmt.Errorf("merging local settings: %w", err)
	}

	applyDefaults(s)
	return s, nil
}

func loadFromFile(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path) //nolint:gosec // path is from caller
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w", err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return s, nil
}

// applyDefaults fills in zero-valued fields after unmarshalling, so a
// partial settings file does not zero out tunables.
func applyDefaults(s *Settings) {
	d := Default()
	if s.HookPort == 0 {
		s.HookPort = d.HookPort
	}
	if s.StreamPort == 0 {
		s.StreamPort = d.StreamPort
	}
	if s.DebounceMs == 0 {
		s.DebounceMs = d.DebounceMs
	}
	if s.PermissionDelayMs == 0 {
		s.PermissionDelayMs = d.PermissionDelayMs
	}
	if s.StaleCheckIntervalMs == 0 {
		s.StaleCheckIntervalMs = d.StaleCheckIntervalMs
	}
	if s.StaleThresholdMs == 0 {
		s.StaleThresholdMs = d.StaleThresholdMs
	}
	if s.IdleDisplayThresholdMs == 0 {
		s.IdleDisplayThresholdMs = d.IdleDisplayThresholdMs
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.Summarizer == "" {
		s.Summarizer = d.Summarizer
	}
}

// Duration helpers so callers deal in time.Duration, not raw ms.

func (s *Settings) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

func (s *Settings) PermissionDelay() time.Duration {
	return time.Duration(s.PermissionDelayMs) * time.Millisecond
}

func (s *Settings) StaleCheckInterval() time.Duration {
	return time.Duration(s.StaleCheckIntervalMs) * time.Millisecond
}

func (s *Settings) StaleThreshold() time.Duration {
	return time.Duration(s.StaleThresholdMs) * time.Millisecond
}
