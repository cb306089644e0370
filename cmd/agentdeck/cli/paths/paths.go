// Package paths resolves the conventional directories the daemon uses.
package paths

import (
	"os"
	"path/filepath"
)

// Environment overrides. Mostly used by tests and packaging.
const (
	StateDirEnvVar       = "AGENTDECK_STATE_DIR"
	ConfigDirEnvVar      = "AGENTDECK_CONFIG_DIR"
	TranscriptsDirEnvVar = "AGENTDECK_TRANSCRIPTS_DIR"
)

// appDirName is the directory name used under the platform config/state roots.
const appDirName = "agentdeck"

// StateDir returns the directory for mutable daemon state: the daemon log,
// per-session audit logs, and the persisted repository cache.
func StateDir() (string, error) {
	if dir := os.Getenv(StateDirEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appDirName), nil
}

// ConfigDir returns the directory holding settings.json.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// TranscriptsDir returns the root of the watched transcript tree. Claude
// Code writes one JSONL file per session under per-project subdirectories.
func TranscriptsDir() (string, error) {
	if dir := os.Getenv(TranscriptsDirEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// AuditLogDir returns the directory for per-session audit logs.
func AuditLogDir() (string, error) {
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "sessions"), nil
}

// RepoCachePath returns the path of the persisted cwd→repository cache.
func RepoCachePath() (string, error) {
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "repo_cache.json"), nil
}

// DaemonLogPath returns the path of the daemon's own structured log.
func DaemonLogPath() (string, error) {
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "agentdeck.log"), nil
}
