package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"git@github.com:acme/widgets.git", "github.com/acme/widgets"},
		{"https://github.com/acme/widgets", "github.com/acme/widgets"},
		{"https://github.com/acme/widgets.git", "github.com/acme/widgets"},
		{"ssh://git@gitlab.example.com/team/repo.git", "gitlab.example.com/team/repo"},
		{"git://host/repo", "host/repo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeRepoURL(tt.url); got != tt.want {
			t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
		{"remote", "add", "origin", "git@github.com:acme/widgets.git"},
		{"commit", "--allow-empty", "-m", "init"},
	} {
		cmd := exec.CommandContext(context.Background(), "git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestProbeRepository(t *testing.T) {
	dir := initRepo(t)
	p := NewProber(filepath.Join(t.TempDir(), "repo_cache.json"))

	info := p.Probe(dir)
	if info.RepoRootPath == "" {
		t.Fatal("expected repo root to resolve")
	}
	if info.IsWorktree {
		t.Error("main checkout reported as worktree")
	}
	if info.Branch != "main" {
		t.Errorf("Branch = %q, want main", info.Branch)
	}
	if info.RepoID != "github.com/acme/widgets" {
		t.Errorf("RepoID = %q", info.RepoID)
	}
}

func TestProbeLinkedWorktree(t *testing.T) {
	dir := initRepo(t)
	wt := filepath.Join(t.TempDir(), "wt")
	cmd := exec.CommandContext(context.Background(), "git", "worktree", "add", wt, "-b", "feature")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git worktree add: %v\n%s", err, out)
	}

	p := NewProber(filepath.Join(t.TempDir(), "repo_cache.json"))
	info := p.Probe(wt)
	if !info.IsWorktree {
		t.Fatalf("expected worktree, got %+v", info)
	}
	if info.WorktreeRoot == "" {
		t.Error("WorktreeRoot empty for linked worktree")
	}
	if info.Branch != "feature" {
		t.Errorf("Branch = %q, want feature", info.Branch)
	}
}

func TestProbeNonRepoDirectory(t *testing.T) {
	p := NewProber("")
	info := p.Probe(t.TempDir())
	if info.RepoRootPath != "" {
		t.Errorf("non-repo dir resolved to %+v", info)
	}
}

func TestProbeDeletedDirectoryUsesDiskCache(t *testing.T) {
	dir := initRepo(t)
	cachePath := filepath.Join(t.TempDir(), "repo_cache.json")

	p := NewProber(cachePath)
	first := p.Probe(dir)
	if first.RepoRootPath == "" {
		t.Fatal("probe of live repo failed")
	}

	// Wait for the fire-and-forget cache write.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(cachePath); err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove repo: %v", err)
	}

	// Fresh prober: memory cache is cold, directory is gone.
	p2 := NewProber(cachePath)
	cached := p2.Probe(dir)
	if cached.RepoRootPath != first.RepoRootPath {
		t.Errorf("disk cache answer = %+v, want %+v", cached, first)
	}
}

func TestCorruptDiskCacheTreatedAsEmpty(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "repo_cache.json")
	if err := os.WriteFile(cachePath, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := NewProber(cachePath)
	if info := p.Probe(filepath.Join(t.TempDir(), "nope")); info != (Info{}) {
		t.Errorf("expected zero Info, got %+v", info)
	}
}
