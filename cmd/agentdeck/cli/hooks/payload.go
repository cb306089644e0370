// Package hooks defines the hook payloads the agent POSTs to the daemon.
package hooks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/validation"
)

// Hook event names as they appear in the hookEventName payload field.
const (
	EventSessionStart       = "SessionStart"
	EventUserPromptSubmit   = "UserPromptSubmit"
	EventPreToolUse         = "PreToolUse"
	EventPermissionRequest  = "PermissionRequest"
	EventPostToolUse        = "PostToolUse"
	EventPostToolUseFailure = "PostToolUseFailure"
	EventStop               = "Stop"
	EventSessionEnd         = "SessionEnd"
	EventPreCompact         = "PreCompact"
	EventNotification       = "Notification"
	EventSubagentStart      = "SubagentStart"
	EventSubagentStop       = "SubagentStop"
	EventTeammateIdle       = "TeammateIdle"
	EventTaskCompleted      = "TaskCompleted"
)

// ToolTask is the tool name Claude Code uses to spawn a sub-agent.
const ToolTask = "Task"

// SessionEnd reason that means the user explicitly quit at the prompt.
const ReasonPromptInputExit = "prompt_input_exit"

// machineDriving lists hook events that can drive the status machine.
var machineDriving = map[string]bool{
	EventUserPromptSubmit:   true,
	EventPermissionRequest:  true,
	EventPreToolUse:         true,
	EventPostToolUse:        true,
	EventPostToolUseFailure: true,
	EventStop:               true,
	EventSessionEnd:         true,
	EventPreCompact:         true,
}

// loggingOnly lists hook events that are accepted and audited but never
// drive the machine.
var loggingOnly = map[string]bool{
	EventSessionStart:  true,
	EventSubagentStart: true,
	EventSubagentStop:  true,
	EventTeammateIdle:  true,
	EventTaskCompleted: true,
	EventNotification:  true,
}

// Known reports whether name is a recognized hook event.
func Known(name string) bool {
	return machineDriving[name] || loggingOnly[name]
}

// LoggingOnly reports whether name is accepted purely for the audit log.
func LoggingOnly(name string) bool {
	return loggingOnly[name]
}

// Payload is one hook POST body. Only hookEventName and sessionId are
// required; unknown extra fields are accepted and ignored.
type Payload struct {
	HookEventName  string          `json:"hookEventName"`
	SessionID      string          `json:"sessionId"`
	TranscriptPath string          `json:"transcriptPath,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	ToolName       string          `json:"toolName,omitempty"`
	ToolUseID      string          `json:"toolUseId,omitempty"`
	ToolInput      json.RawMessage `json:"toolInput,omitempty"`
	PermissionMode string          `json:"permissionMode,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	Source         string          `json:"source,omitempty"`
	AgentID        string          `json:"agentId,omitempty"`
	AgentType      string          `json:"agentType,omitempty"`
}

// ToolInput is the recognized subset of the toolInput object.
type ToolInput struct {
	FilePath     string `json:"filePath,omitempty"`
	Command      string `json:"command,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	SubagentType string `json:"subagentType,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ParsedToolInput decodes the recognized toolInput fields. A missing or
// malformed toolInput yields the zero value; tool input is advisory.
func (p *Payload) ParsedToolInput() ToolInput {
	var in ToolInput
	if len(p.ToolInput) == 0 {
		return in
	}
	_ = json.Unmarshal(p.ToolInput, &in)
	return in
}

// Parse decodes and validates a hook payload.
func Parse(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the required fields and identifier shapes.
func (p *Payload) Validate() error {
	if p.HookEventName == "" {
		return errors.New("missing hookEventName")
	}
	if !Known(p.HookEventName) {
		return fmt.Errorf("unknown hookEventName %q", p.HookEventName)
	}
	if err := validation.ValidateSessionID(p.SessionID); err != nil {
		return err
	}
	return validation.ValidateToolUseID(p.ToolUseID)
}
