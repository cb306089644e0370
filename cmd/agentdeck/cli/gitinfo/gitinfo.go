// Package gitinfo resolves a session working directory to its repository
// identity: root path, remote URL, branch, and worktree linkage.
//
// Resolution is layered: a short-TTL in-memory cache absorbs probe storms,
// and a persisted cwd→info cache keeps deleted worktrees groupable under
// their repository after the directory is gone.
package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Info describes the repository a working directory belongs to.
type Info struct {
	RepoRootPath string `json:"repoRootPath,omitempty"`
	RepoURL      string `json:"repoUrl,omitempty"`
	RepoID       string `json:"repoId,omitempty"`
	Branch       string `json:"branch,omitempty"`
	IsWorktree   bool   `json:"isWorktree,omitempty"`
	WorktreeRoot string `json:"worktreeRoot,omitempty"`
}

// memCacheTTL bounds how long a probe result is reused before the
// filesystem is consulted again (branch switches should surface quickly).
const memCacheTTL = 60 * time.Second

// memCacheSize bounds the in-memory cache; sessions on one machine are few.
const memCacheSize = 256

// Prober resolves working directories to repository info.
type Prober struct {
	mem  *lru.LRU[string, Info]
	disk *diskCache
}

// NewProber creates a prober persisting its cwd cache at cachePath.
// A missing or corrupt cache file starts empty.
func NewProber(cachePath string) *Prober {
	return &Prober{
		mem:  lru.NewLRU[string, Info](memCacheSize, nil, memCacheTTL),
		disk: newDiskCache(cachePath),
	}
}

// Probe resolves cwd. It never fails: when the directory no longer exists
// (deleted worktree) it answers from the persisted cache, and when nothing
// is known it returns the zero Info.
func (p *Prober) Probe(cwd string) Info {
	if cwd == "" {
		return Info{}
	}
	if info, ok := p.mem.Get(cwd); ok {
		return info
	}

	info, ok := probeFilesystem(cwd)
	if !ok {
		// Directory unreachable; fall back to what we learned before.
		if cached, ok := p.disk.get(cwd); ok {
			return cached
		}
		return Info{}
	}

	p.mem.Add(cwd, info)
	p.disk.put(cwd, info) // fire-and-forget persistence
	return info
}

// probeFilesystem resolves cwd against the live filesystem.
func probeFilesystem(cwd string) (Info, bool) {
	if st, err := os.Stat(cwd); err != nil || !st.IsDir() {
		return Info{}, false
	}

	root := gitTopLevel(cwd)
	if root == "" {
		// Not a git checkout. Still a valid answer.
		return Info{}, true
	}

	info := Info{RepoRootPath: root}

	// A linked worktree has a .git *file* pointing at the shared gitdir.
	if st, err := os.Stat(filepath.Join(root, ".git")); err == nil && !st.IsDir() {
		info.IsWorktree = true
		info.WorktreeRoot = root
		if common := gitCommonDir(cwd); common != "" {
			info.RepoRootPath = filepath.Dir(common)
		}
	}

	if repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
		if remote, err := repo.Remote("origin"); err == nil {
			urls := remote.Config().URLs
			if len(urls) > 0 {
				info.RepoURL = urls[0]
				info.RepoID = NormalizeRepoURL(urls[0])
			}
		}
	}
	if info.RepoID == "" {
		info.RepoID = filepath.Base(info.RepoRootPath)
	}
	return info, true
}

// gitTopLevel returns the worktree root for cwd, or "" outside a checkout.
// Uses the git CLI because go-git cannot locate the root of a linked
// worktree from an arbitrary subdirectory.
func gitTopLevel(cwd string) string {
	return gitRevParse(cwd, "--show-toplevel")
}

// gitCommonDir returns the shared .git directory (the main checkout's).
func gitCommonDir(cwd string) string {
	out := gitRevParse(cwd, "--git-common-dir")
	if out == "" {
		return ""
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(cwd, out)
	}
	return filepath.Clean(out)
}

func gitRevParse(cwd, flag string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", flag)
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// NormalizeRepoURL reduces a remote URL to a stable host/path identifier:
//
//	git@github.com:acme/widgets.git -> github.com/acme/widgets
//	https://github.com/acme/widgets -> github.com/acme/widgets
func NormalizeRepoURL(url string) string {
	s := strings.TrimSpace(url)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	for _, prefix := range []string{"https://", "http://", "ssh://", "git://"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	if at := strings.Index(s, "@"); at >= 0 {
		s = s[at+1:]
	}
	// scp-like syntax: host:path
	if colon := strings.Index(s, ":"); colon >= 0 && !strings.Contains(s[:colon], "/") {
		s = s[:colon] + "/" + s[colon+1:]
	}
	return s
}
