package tailer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
)

// fakeRegistry records the calls the tailer makes.
type fakeRegistry struct {
	mu        sync.Mutex
	known     map[string]bool
	offsets   map[string]int64
	updates   []registry.ContentUpdate
	bootstrap map[string]registry.BootstrapInfo
	removed   []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		known:     make(map[string]bool),
		offsets:   make(map[string]int64),
		bootstrap: make(map[string]registry.BootstrapInfo),
	}
}

func (f *fakeRegistry) ApplyContent(id string, u registry.ContentUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	f.offsets[id] = u.NewOffset
}

func (f *fakeRegistry) Bootstrap(_ context.Context, id string, info registry.BootstrapInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrap[id] = info
	f.known[id] = true
	f.offsets[id] = info.Offset
}

func (f *fakeRegistry) TailOffset(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offsets[id]
}

func (f *fakeRegistry) Known(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.known[id]
}

func (f *fakeRegistry) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

func writeTranscript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const line1 = `{"type":"user","timestamp":"2026-08-24T10:00:00Z","cwd":"/tmp/p","message":{"content":"fix the tests"}}` + "\n"
const line2 = `{"type":"assistant","timestamp":"2026-08-24T10:00:03Z","message":{"content":[{"type":"tool_use"}]}}` + "\n"

func startTailer(t *testing.T, root string, reg Registry) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	tl := New(root, 20*time.Millisecond, reg)
	go func() {
		defer close(done)
		_ = tl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestInitialScanBootstrapsExistingTranscripts(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-tmp-p")
	require.NoError(t, os.MkdirAll(project, 0o750))
	writeTranscript(t, project, "sess1.jsonl", line1+line2)
	writeTranscript(t, project, "agent-side.jsonl", line1)

	reg := newFakeRegistry()
	startTailer(t, root, reg)

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.bootstrap) == 1
	}, 2*time.Second, 10*time.Millisecond)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	info, ok := reg.bootstrap["sess1"]
	require.True(t, ok)
	assert.Equal(t, "/tmp/p", info.Cwd)
	assert.Equal(t, "fix the tests", info.OriginalPrompt)
	assert.Equal(t, 2, info.MessageCount)
	assert.Equal(t, int64(len(line1)+len(line2)), info.Offset)
}

func TestAppendIsCoalescedAndApplied(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-tmp-p")
	require.NoError(t, os.MkdirAll(project, 0o750))
	path := writeTranscript(t, project, "sess1.jsonl", line1)

	reg := newFakeRegistry()
	startTailer(t, root, reg)

	require.Eventually(t, func() bool { return reg.Known("sess1") }, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.updates) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	u := reg.updates[len(reg.updates)-1]
	assert.Equal(t, 1, u.MessageDelta)
	assert.Equal(t, int64(len(line1)+len(line2)), u.NewOffset)
}

func TestNewProjectDirectoryIsPickedUp(t *testing.T) {
	root := t.TempDir()
	reg := newFakeRegistry()
	startTailer(t, root, reg)

	// Give the watcher time to arm before the directory appears.
	time.Sleep(50 * time.Millisecond)

	project := filepath.Join(root, "-new-project")
	require.NoError(t, os.MkdirAll(project, 0o750))
	writeTranscript(t, project, "sess2.jsonl", line1)

	require.Eventually(t, func() bool { return reg.Known("sess2") }, 2*time.Second, 10*time.Millisecond)
}

func TestUnlinkRemovesSession(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-tmp-p")
	require.NoError(t, os.MkdirAll(project, 0o750))
	path := writeTranscript(t, project, "sess1.jsonl", line1)

	reg := newFakeRegistry()
	startTailer(t, root, reg)
	require.Eventually(t, func() bool { return reg.Known("sess1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.removed) == 1 && reg.removed[0] == "sess1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMissingRootIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tl := New(filepath.Join(t.TempDir(), "absent"), 0, newFakeRegistry())

	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not exit on cancel")
	}
}
