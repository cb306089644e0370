package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadFromDirDefaultsWhenMissing(t *testing.T) {
	s, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir error: %v", err)
	}
	if s.HookPort != 4451 || s.StreamPort != 4450 {
		t.Errorf("default ports = %d/%d, want 4451/4450", s.HookPort, s.StreamPort)
	}
	if s.PermissionDelayMs != 3000 {
		t.Errorf("PermissionDelayMs = %d, want 3000", s.PermissionDelayMs)
	}
	if s.Summarizer != SummarizerAnthropic {
		t.Errorf("Summarizer = %q, want %q", s.Summarizer, SummarizerAnthropic)
	}
}

func TestLoadFromDirPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SettingsFileName, `{"hook_port": 9999}`)

	s, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir error: %v", err)
	}
	if s.HookPort != 9999 {
		t.Errorf("HookPort = %d, want 9999", s.HookPort)
	}
	if s.DebounceMs != 200 {
		t.Errorf("DebounceMs = %d, want default 200", s.DebounceMs)
	}
}

func TestLoadFromDirLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SettingsFileName, `{"hook_port": 9999, "log_level": "warn"}`)
	writeFile(t, dir, SettingsLocalFileName, `{"log_level": "debug", "telemetry": false}`)

	s, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir error: %v", err)
	}
	if s.HookPort != 9999 {
		t.Errorf("HookPort = %d, want 9999 from base file", s.HookPort)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want local override debug", s.LogLevel)
	}
	if s.Telemetry == nil || *s.Telemetry {
		t.Errorf("Telemetry = %v, want false from local override", s.Telemetry)
	}
}

func TestLoadFromDirCorruptBaseFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SettingsFileName, `{not json`)

	if _, err := LoadFromDir(dir); err == nil {
		t.Fatal("expected error for corrupt settings file")
	}
}
