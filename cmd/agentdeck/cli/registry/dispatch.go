package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// HandleHook dispatches one validated hook payload. The payload has
// already passed hooks.Parse; anything here is best-effort per session.
func (r *Registry) HandleHook(ctx context.Context, p *hooks.Payload) {
	r.hooksProcessed.Add(1)
	ctx = logging.WithSession(ctx, p.SessionID)
	ctx = logging.WithHook(ctx, p.HookEventName)

	r.audit.RecordHook(p.SessionID, p.HookEventName)

	if hooks.LoggingOnly(p.HookEventName) {
		return
	}

	switch p.HookEventName {
	case hooks.EventUserPromptSubmit:
		r.handlePromptSubmit(ctx, p)
	case hooks.EventPermissionRequest:
		r.handlePermissionRequest(ctx, p)
	case hooks.EventPreToolUse:
		r.handlePreToolUse(ctx, p)
	case hooks.EventPostToolUse, hooks.EventPostToolUseFailure:
		r.handlePostToolUse(ctx, p)
	case hooks.EventStop:
		r.handleStop(p)
	case hooks.EventSessionEnd:
		r.handleSessionEnd(ctx, p)
	case hooks.EventPreCompact:
		r.handlePreCompact(p)
	}
}

func (r *Registry) handlePromptSubmit(ctx context.Context, p *hooks.Payload) {
	// Probe before taking any session lock; the probe may hit the
	// filesystem or spawn git.
	var git = r.prober.Probe(p.Cwd)

	s, created := r.getOrCreate(p.SessionID, statemachine.StateWorking)

	s.mu.Lock()
	if p.TranscriptPath != "" {
		s.logFilePath = p.TranscriptPath
	}
	if p.Cwd != "" {
		s.cwd = p.Cwd
		s.git = git
	}
	if s.originalPrompt == "" && p.Prompt != "" {
		s.originalPrompt = p.Prompt
	}
	s.lastActivityAt = r.now()
	var changed bool
	if !created {
		changed = r.transitionLocked(s, statemachine.EventWorking, auditMeta{
			source: "hook", signal: hooks.EventUserPromptSubmit,
		}, 0)
	}
	s.mu.Unlock()

	if created {
		logging.Info(ctx, "session created", slog.String("cwd", p.Cwd))
	}
	if created || changed {
		r.notifyChanged(p.SessionID)
	}
}

func (r *Registry) handlePermissionRequest(ctx context.Context, p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}

	input := p.ParsedToolInput()

	s.mu.Lock()
	toolUseID := p.ToolUseID
	if toolUseID == "" {
		// The agent omits toolUseId on some permission prompts; fall back
		// to the youngest matching active tool. A request with no match is
		// still honored (empty resolved ID).
		toolUseID = s.youngestToolUseLocked(p.ToolName)
	}

	s.cancelPermissionDebounceLocked()
	s.permToolUseID = toolUseID
	s.permToolName = p.ToolName
	s.permInput = input
	gen := s.permGen
	s.permTimer = time.AfterFunc(r.cfg.PermissionDelay, func() {
		r.permissionDebounceFired(p.SessionID, gen)
	})
	s.mu.Unlock()

	logging.Debug(ctx, "permission debounce scheduled",
		slog.String("tool", p.ToolName),
		slog.String("tool_use_id", toolUseID),
	)
}

// permissionDebounceFired runs on the debounce timer goroutine. The timer
// carries only the session ID and a generation; a stale generation means
// the debounce was cancelled or replaced after scheduling.
func (r *Registry) permissionDebounceFired(sessionID string, gen uint64) {
	s := r.get(sessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.permGen != gen {
		s.mu.Unlock()
		return
	}
	s.permTimer = nil

	// Only surface the permission if the machine actually moves to
	// needsApproval; otherwise the safety invariant (pending iff
	// needsApproval) would break.
	next := statemachine.Transition(s.state, statemachine.EventPermissionRequest, s.git.IsWorktree)
	var changed bool
	if next == statemachine.StateNeedsApproval {
		s.pendingPermission = &PendingPermission{
			ToolName:    s.permToolName,
			Input:       s.permInput,
			RequestedAt: r.now(),
		}
		changed = r.transitionLocked(s, statemachine.EventPermissionRequest, auditMeta{
			source: "debounce", tool: s.permToolName,
		}, 0)
	}
	s.mu.Unlock()

	if changed {
		r.notifyChanged(sessionID)
	}
}

func (r *Registry) handlePreToolUse(ctx context.Context, p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}
	input := p.ParsedToolInput()

	s.mu.Lock()
	now := r.now()
	s.lastActivityAt = now
	if p.ToolUseID != "" {
		s.activeTools[p.ToolUseID] = ActiveTool{
			ToolName:  p.ToolName,
			Input:     input,
			StartedAt: now,
		}
	}
	if p.ToolName == hooks.ToolTask && p.ToolUseID != "" {
		s.activeTasks[p.ToolUseID] = ActiveTask{
			AgentType:   input.SubagentType,
			Description: input.Description,
			StartedAt:   now,
		}
		r.transitionLocked(s, statemachine.EventTaskStarted, auditMeta{
			source: "hook", signal: hooks.EventPreToolUse, tool: p.ToolName,
		}, 0)
	}
	s.mu.Unlock()

	logging.Debug(ctx, "tool started", slog.String("tool", p.ToolName))
	// Ledger contents changed even when the machine state did not.
	r.notifyChanged(p.SessionID)
}

func (r *Registry) handlePostToolUse(ctx context.Context, p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	s.lastActivityAt = r.now()

	// Selective debounce cancel: a sibling tool completing must not kill
	// the debounce for a different tool's permission request. Cancel only
	// when the debounce could not be resolved to a tool use, or when it
	// resolved to exactly this one.
	if s.permTimer != nil && (s.permToolUseID == "" || s.permToolUseID == p.ToolUseID) {
		s.cancelPermissionDebounceLocked()
	}

	if s.state == statemachine.StateNeedsApproval {
		r.transitionLocked(s, statemachine.EventWorking, auditMeta{
			source: "hook", signal: p.HookEventName, tool: p.ToolName,
		}, 0)
	}

	delete(s.activeTools, p.ToolUseID)
	if _, isTask := s.activeTasks[p.ToolUseID]; isTask {
		delete(s.activeTasks, p.ToolUseID)
		if len(s.activeTasks) == 0 {
			r.transitionLocked(s, statemachine.EventTasksDone, auditMeta{
				source: "hook", signal: p.HookEventName, tool: p.ToolName,
			}, 0)
		}
	}
	s.mu.Unlock()

	logging.Debug(ctx, "tool finished", slog.String("tool", p.ToolName))
	r.notifyChanged(p.SessionID)
}

func (r *Registry) handleStop(p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	s.cancelPermissionDebounceLocked()
	compactingCleared := !s.compactingSince.IsZero()
	s.compactingSince = time.Time{}
	changed := r.transitionLocked(s, statemachine.EventStop, auditMeta{
		source: "hook", signal: hooks.EventStop,
	}, 0)
	s.mu.Unlock()

	if changed || compactingCleared {
		r.notifyChanged(p.SessionID)
	}
}

func (r *Registry) handleSessionEnd(ctx context.Context, p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	s.cancelPermissionDebounceLocked()

	// A resumed editor re-attaches to a waiting session and fires
	// SessionEnd on its way; applying ENDED there would hide the session.
	// Only an explicit quit at the prompt ends a waiting session.
	if s.state == statemachine.StateWaiting && p.Reason != hooks.ReasonPromptInputExit {
		s.mu.Unlock()
		logging.Debug(ctx, "SessionEnd ignored while waiting", slog.String("reason", p.Reason))
		return
	}

	changed := r.transitionLocked(s, statemachine.EventEnded, auditMeta{
		source: "hook", signal: hooks.EventSessionEnd,
	}, 0)
	s.mu.Unlock()

	if changed {
		r.notifyChanged(p.SessionID)
	}
}

func (r *Registry) handlePreCompact(p *hooks.Payload) {
	s := r.get(p.SessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	s.compactingSince = r.now()
	s.mu.Unlock()

	r.notifyChanged(p.SessionID)
}
