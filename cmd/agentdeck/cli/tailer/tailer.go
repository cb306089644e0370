// Package tailer watches the transcript directory tree and feeds content
// metadata into the registry. Tailing never drives status transitions;
// its only structural effect is bootstrapping sessions whose transcripts
// predate the daemon and removing sessions whose transcripts are deleted.
package tailer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
)

// Registry is the subset of the session registry the tailer needs.
type Registry interface {
	ApplyContent(sessionID string, u registry.ContentUpdate)
	Bootstrap(ctx context.Context, sessionID string, info registry.BootstrapInfo)
	TailOffset(sessionID string) int64
	Known(sessionID string) bool
	Remove(sessionID string)
}

// Tailer tails *.jsonl transcripts under a root directory, one project
// subdirectory deep, the layout the agent writes to.
type Tailer struct {
	root     string
	coalesce time.Duration
	reg      Registry

	mu     sync.Mutex
	timers map[string]*time.Timer // transcript path -> pending coalesce

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a tailer rooted at root. coalesce bounds how often a hot
// file is re-read; zero means the 200ms default.
func New(root string, coalesce time.Duration, reg Registry) *Tailer {
	if coalesce <= 0 {
		coalesce = 200 * time.Millisecond
	}
	return &Tailer{
		root:     root,
		coalesce: coalesce,
		reg:      reg,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the initial transcript scan has completed (or been
// skipped). Callers gate hook ingest on it so bootstrap and live hooks
// cannot race at startup.
func (t *Tailer) Ready() <-chan struct{} { return t.ready }

func (t *Tailer) markReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// Run scans existing transcripts, then watches for changes until ctx is
// done. A missing root is not an error; the agent may simply never have
// run on this machine.
func (t *Tailer) Run(ctx context.Context) error {
	ctx = logging.WithComponent(ctx, "tailer")

	if _, err := os.Stat(t.root); os.IsNotExist(err) {
		logging.Info(ctx, "transcript root absent, tailer idle", slog.String("root", t.root))
		t.markReady()
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.markReady()
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(t.root); err != nil {
		t.markReady()
		return err
	}
	dirs, _ := os.ReadDir(t.root)
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(t.root, d.Name())
		if err := watcher.Add(dir); err != nil {
			logging.Warn(ctx, "cannot watch project dir", slog.String("dir", dir), slog.Any("error", err))
			continue
		}
		t.scanDir(ctx, dir)
	}
	t.markReady()

	for {
		select {
		case <-ctx.Done():
			t.stopTimers()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			t.handleEvent(ctx, watcher, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "watch error", slog.Any("error", err))
		}
	}
}

// scanDir bootstraps every tracked transcript already present in dir.
func (t *Tailer) scanDir(ctx context.Context, dir string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Name())
		if f.IsDir() || !tracked(path) {
			continue
		}
		t.bootstrap(ctx, path)
	}
}

func (t *Tailer) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	// New project directory: start watching it and pick up any transcript
	// written before the watch was in place.
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if filepath.Dir(ev.Name) == t.root {
				if err := watcher.Add(ev.Name); err == nil {
					t.scanDir(ctx, ev.Name)
				}
			}
			return
		}
	}

	if !tracked(ev.Name) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		t.cancelTimer(ev.Name)
		t.reg.Remove(sessionIDFor(ev.Name))
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		t.scheduleRead(ctx, ev.Name)
	}
}

// scheduleRead arms the per-file coalesce timer: at most one outstanding
// read per file, latest write wins.
func (t *Tailer) scheduleRead(ctx context.Context, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, pending := t.timers[path]; pending {
		return
	}
	t.timers[path] = time.AfterFunc(t.coalesce, func() {
		t.mu.Lock()
		delete(t.timers, path)
		t.mu.Unlock()
		t.catchUp(ctx, path)
	})
}

func (t *Tailer) cancelTimer(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[path]; ok {
		timer.Stop()
		delete(t.timers, path)
	}
}

func (t *Tailer) stopTimers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, timer := range t.timers {
		timer.Stop()
		delete(t.timers, path)
	}
}

// catchUp reads everything appended since the session's tail offset.
func (t *Tailer) catchUp(ctx context.Context, path string) {
	id := sessionIDFor(path)
	if !t.reg.Known(id) {
		t.bootstrap(ctx, path)
		return
	}

	offset := t.reg.TailOffset(id)
	data, _, err := readFrom(path, offset)
	if err != nil {
		logging.Warn(logging.WithSession(ctx, id), "transcript read failed", slog.Any("error", err))
		return
	}
	if len(data) == 0 {
		return
	}

	st, consumed := parseLines(data)
	if consumed == 0 {
		return
	}
	t.reg.ApplyContent(id, registry.ContentUpdate{
		LastActivityAt: st.lastActivityAt,
		MessageDelta:   st.messageDelta,
		Todo:           st.todo,
		Recent:         st.recent,
		NewOffset:      offset + int64(consumed),
	})
}

// bootstrap parses a whole transcript and registers the session it
// describes, starting in waiting until hooks say otherwise.
func (t *Tailer) bootstrap(ctx context.Context, path string) {
	data, _, err := readFrom(path, 0)
	if err != nil {
		logging.Warn(ctx, "transcript bootstrap read failed",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	st, consumed := parseLines(data)
	if consumed == 0 {
		return
	}

	id := sessionIDFor(path)
	t.reg.Bootstrap(ctx, id, registry.BootstrapInfo{
		LogFilePath:    path,
		Cwd:            st.cwd,
		OriginalPrompt: st.firstPrompt,
		LastActivityAt: st.lastActivityAt,
		MessageCount:   st.messageDelta,
		Todo:           st.todo,
		Recent:         st.recent,
		Offset:         int64(consumed),
	})
}

// readFrom returns the bytes at [offset, EOF) and the file size. A file
// shorter than offset (truncated or rewritten) yields no data; offsets
// never move backwards.
func readFrom(path string, offset int64) ([]byte, int64, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the watched tree
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := fi.Size()
	if size <= offset {
		return nil, size, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, size, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, size, err
	}
	return data, size, nil
}

// tracked reports whether path is a transcript the daemon follows.
// Sidechain transcripts written by sub-agents are skipped; their parent
// session already accounts for the work.
func tracked(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".jsonl") {
		return false
	}
	if strings.HasPrefix(base, "agent-") || strings.HasSuffix(base, "-sidechain.jsonl") {
		return false
	}
	return true
}

// sessionIDFor maps a transcript path to its session ID.
func sessionIDFor(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}
