package registry

import (
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/gitinfo"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// ActiveTool is one still-running tool invocation.
type ActiveTool struct {
	ToolName  string
	Input     hooks.ToolInput
	StartedAt time.Time
}

// ActiveTask is one still-running sub-agent task.
type ActiveTask struct {
	AgentType   string
	Description string
	StartedAt   time.Time
}

// recentEntriesKeep bounds the transcript snippets retained per session
// for the summarizer.
const recentEntriesKeep = 5

// PendingPermission is the permission request surfaced after the debounce.
type PendingPermission struct {
	ToolName    string
	Input       hooks.ToolInput
	RequestedAt time.Time
}

// TodoProgress is the todo-list completion carried in transcript entries.
type TodoProgress struct {
	Total     int
	Completed int
}

// session is one registry entry. All fields are owned by the registry and
// mutated only under mu.
type session struct {
	mu sync.Mutex

	id             string
	logFilePath    string
	cwd            string
	startedAt      time.Time
	originalPrompt string

	state             statemachine.State
	pendingPermission *PendingPermission

	lastActivityAt time.Time
	messageCount   int
	todoProgress   *TodoProgress
	logTailOffset  int64
	recentEntries  []string

	activeTools     map[string]ActiveTool
	activeTasks     map[string]ActiveTask
	compactingSince time.Time // zero while not compacting

	git gitinfo.Info

	// Permission debounce. The timer carries only IDs; gen invalidates a
	// fired callback that lost a cancel race.
	permTimer     *time.Timer
	permGen       uint64
	permToolUseID string
	permToolName  string
	permInput     hooks.ToolInput
}

func newSession(id string, now time.Time) *session {
	return &session{
		id:          id,
		startedAt:   now,
		state:       statemachine.StateWorking,
		activeTools: make(map[string]ActiveTool),
		activeTasks: make(map[string]ActiveTask),
	}
}

// cancelPermissionDebounceLocked invalidates any outstanding debounce.
// Caller holds s.mu.
func (s *session) cancelPermissionDebounceLocked() {
	s.permGen++
	if s.permTimer != nil {
		s.permTimer.Stop()
		s.permTimer = nil
	}
	s.permToolUseID = ""
	s.permToolName = ""
	s.permInput = hooks.ToolInput{}
}

// youngestToolUseLocked returns the most recently started active tool with
// the given name. Caller holds s.mu.
func (s *session) youngestToolUseLocked(toolName string) string {
	var best string
	var bestAt time.Time
	for id, tool := range s.activeTools {
		if tool.ToolName != toolName {
			continue
		}
		if best == "" || tool.StartedAt.After(bestAt) {
			best = id
			bestAt = tool.StartedAt
		}
	}
	return best
}

// View is an immutable copy of a session handed to the publisher. Holding
// a View never holds a lock.
type View struct {
	SessionID      string
	LogFilePath    string
	Cwd            string
	StartedAt      time.Time
	OriginalPrompt string

	State             statemachine.State
	PendingPermission *PendingPermission

	LastActivityAt time.Time
	MessageCount   int
	TodoProgress   *TodoProgress
	RecentEntries  []string

	ActiveTools     map[string]ActiveTool
	ActiveTasks     map[string]ActiveTask
	CompactingSince time.Time

	Git gitinfo.Info
}

// viewLocked copies the session. Caller holds s.mu.
func (s *session) viewLocked() View {
	v := View{
		SessionID:       s.id,
		LogFilePath:     s.logFilePath,
		Cwd:             s.cwd,
		StartedAt:       s.startedAt,
		OriginalPrompt:  s.originalPrompt,
		State:           s.state,
		LastActivityAt:  s.lastActivityAt,
		MessageCount:    s.messageCount,
		CompactingSince: s.compactingSince,
		Git:             s.git,
		ActiveTools:     make(map[string]ActiveTool, len(s.activeTools)),
		ActiveTasks:     make(map[string]ActiveTask, len(s.activeTasks)),
	}
	if len(s.recentEntries) > 0 {
		v.RecentEntries = append([]string(nil), s.recentEntries...)
	}
	for id, tool := range s.activeTools {
		v.ActiveTools[id] = tool
	}
	for id, task := range s.activeTasks {
		v.ActiveTasks[id] = task
	}
	if s.pendingPermission != nil {
		pp := *s.pendingPermission
		v.PendingPermission = &pp
	}
	if s.todoProgress != nil {
		tp := *s.todoProgress
		v.TodoProgress = &tp
	}
	return v
}
