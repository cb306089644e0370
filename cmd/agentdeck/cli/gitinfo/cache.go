package gitinfo

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/jsonutil"
)

// diskCache persists cwd→Info so deleted worktrees stay attributable to
// their repository across daemon restarts. Writes are best-effort; reads
// tolerate missing or corrupt files.
type diskCache struct {
	path string

	mu      sync.Mutex
	entries map[string]Info
}

func newDiskCache(path string) *diskCache {
	c := &diskCache{path: path, entries: make(map[string]Info)}
	c.load()
	return c
}

func (c *diskCache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path) //nolint:gosec // path is from paths.RepoCachePath
	if err != nil {
		return
	}
	var entries map[string]Info
	if err := json.Unmarshal(data, &entries); err != nil {
		return // corrupt cache is treated as empty
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

func (c *diskCache) get(cwd string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[cwd]
	return info, ok
}

// put stores an entry and schedules a write. Only entries that resolved to
// a repository are worth remembering.
func (c *diskCache) put(cwd string, info Info) {
	if info.RepoRootPath == "" {
		return
	}
	c.mu.Lock()
	if existing, ok := c.entries[cwd]; ok && existing == info {
		c.mu.Unlock()
		return
	}
	c.entries[cwd] = info
	snapshot := make(map[string]Info, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if c.path == "" {
		return
	}
	go func() {
		_ = jsonutil.WriteFileAtomic(c.path, snapshot)
	}()
}
