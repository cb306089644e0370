package publish

import (
	"sort"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// Snapshot is the flat, immutable DTO handed to subscribers. Everything a
// dashboard needs is here; nothing in it aliases registry state.
type Snapshot struct {
	SessionID      string    `json:"sessionId"`
	Cwd            string    `json:"cwd,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	OriginalPrompt string    `json:"originalPrompt,omitempty"`

	RepoRootPath string `json:"repoRootPath,omitempty"`
	RepoURL      string `json:"repoUrl,omitempty"`
	RepoID       string `json:"repoId,omitempty"`
	GitBranch    string `json:"gitBranch,omitempty"`
	IsWorktree   bool   `json:"isWorktree"`
	WorktreeRoot string `json:"worktreeRoot,omitempty"`

	Status            statemachine.Status `json:"status"`
	HasPendingToolUse bool                `json:"hasPendingToolUse"`
	PendingTool       *PendingTool        `json:"pendingTool,omitempty"`

	LastActivityAt time.Time     `json:"lastActivityAt,omitempty"`
	MessageCount   int           `json:"messageCount"`
	TodoProgress   *TodoProgress `json:"todoProgress,omitempty"`

	ActiveTasks []TaskEntry `json:"activeTasks"`
	ActiveTools []ToolEntry `json:"activeTools"`

	Goal    string `json:"goal,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// PendingTool describes the permission prompt currently blocking a session.
type PendingTool struct {
	ToolName    string    `json:"toolName"`
	Command     string    `json:"command,omitempty"`
	FilePath    string    `json:"filePath,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// TaskEntry is one running sub-agent task.
type TaskEntry struct {
	ToolUseID   string    `json:"toolUseId"`
	AgentType   string    `json:"agentType,omitempty"`
	Description string    `json:"description,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// ToolEntry is one running tool invocation.
type ToolEntry struct {
	ToolUseID string    `json:"toolUseId"`
	ToolName  string    `json:"toolName"`
	Command   string    `json:"command,omitempty"`
	FilePath  string    `json:"filePath,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// TodoProgress mirrors the registry's todo counters.
type TodoProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// compactingTaskID is the synthetic ledger entry shown while the agent
// compacts its context window.
const compactingTaskID = "compacting"

// buildSnapshot derives a Snapshot from a registry view plus the cached
// summary fields.
func buildSnapshot(v registry.View, goal, summary string) Snapshot {
	s := Snapshot{
		SessionID:      v.SessionID,
		Cwd:            v.Cwd,
		StartedAt:      v.StartedAt,
		OriginalPrompt: v.OriginalPrompt,

		RepoRootPath: v.Git.RepoRootPath,
		RepoURL:      v.Git.RepoURL,
		RepoID:       v.Git.RepoID,
		GitBranch:    v.Git.Branch,
		IsWorktree:   v.Git.IsWorktree,
		WorktreeRoot: v.Git.WorktreeRoot,

		Status:            v.State.Published(),
		HasPendingToolUse: v.PendingPermission != nil,

		LastActivityAt: v.LastActivityAt,
		MessageCount:   v.MessageCount,

		Goal:    goal,
		Summary: summary,
	}

	if pp := v.PendingPermission; pp != nil {
		s.PendingTool = &PendingTool{
			ToolName:    pp.ToolName,
			Command:     pp.Input.Command,
			FilePath:    pp.Input.FilePath,
			RequestedAt: pp.RequestedAt,
		}
	}
	if v.TodoProgress != nil {
		s.TodoProgress = &TodoProgress{
			Total:     v.TodoProgress.Total,
			Completed: v.TodoProgress.Completed,
		}
	}

	s.ActiveTasks = make([]TaskEntry, 0, len(v.ActiveTasks)+1)
	for id, task := range v.ActiveTasks {
		s.ActiveTasks = append(s.ActiveTasks, TaskEntry{
			ToolUseID:   id,
			AgentType:   task.AgentType,
			Description: task.Description,
			StartedAt:   task.StartedAt,
		})
	}
	if !v.CompactingSince.IsZero() {
		s.ActiveTasks = append(s.ActiveTasks, TaskEntry{
			ToolUseID:   compactingTaskID,
			AgentType:   "System",
			Description: "Compacting context",
			StartedAt:   v.CompactingSince,
		})
	}
	sort.Slice(s.ActiveTasks, func(i, j int) bool {
		return s.ActiveTasks[i].ToolUseID < s.ActiveTasks[j].ToolUseID
	})

	s.ActiveTools = make([]ToolEntry, 0, len(v.ActiveTools))
	for id, tool := range v.ActiveTools {
		if tool.ToolName == hooks.ToolTask {
			continue
		}
		s.ActiveTools = append(s.ActiveTools, ToolEntry{
			ToolUseID: id,
			ToolName:  tool.ToolName,
			Command:   tool.Input.Command,
			FilePath:  tool.Input.FilePath,
			StartedAt: tool.StartedAt,
		})
	}
	sort.Slice(s.ActiveTools, func(i, j int) bool {
		return s.ActiveTools[i].ToolUseID < s.ActiveTools[j].ToolUseID
	})

	return s
}

// shouldEmit implements the update suppression rules: only observable
// changes reach subscribers. messageCount moves the needle only upward.
func shouldEmit(prev, next Snapshot) bool {
	switch {
	case next.Status != prev.Status:
		return true
	case next.HasPendingToolUse != prev.HasPendingToolUse:
		return true
	case next.MessageCount > prev.MessageCount:
		return true
	case next.GitBranch != prev.GitBranch:
		return true
	case !tasksEqual(prev.ActiveTasks, next.ActiveTasks):
		return true
	case !toolsEqual(prev.ActiveTools, next.ActiveTools):
		return true
	case !todoEqual(prev.TodoProgress, next.TodoProgress):
		return true
	case next.Goal != prev.Goal || next.Summary != prev.Summary:
		return true
	}
	return false
}

func tasksEqual(a, b []TaskEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toolsEqual(a, b []ToolEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func todoEqual(a, b *TodoProgress) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
