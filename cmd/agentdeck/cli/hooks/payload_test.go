package hooks

import (
	"testing"
)

func TestParseValidPayload(t *testing.T) {
	body := `{
		"hookEventName": "PreToolUse",
		"sessionId": "abc-123",
		"toolName": "Task",
		"toolUseId": "toolu_01",
		"toolInput": {"subagentType": "Bash", "description": "Run tests", "extra": 1},
		"somethingUnknown": {"nested": true}
	}`
	p, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if p.HookEventName != EventPreToolUse || p.SessionID != "abc-123" {
		t.Errorf("unexpected payload: %+v", p)
	}
	in := p.ParsedToolInput()
	if in.SubagentType != "Bash" || in.Description != "Run tests" {
		t.Errorf("ParsedToolInput = %+v", in)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing event name", `{"sessionId": "a"}`},
		{"unknown event name", `{"hookEventName": "Nope", "sessionId": "a"}`},
		{"missing session id", `{"hookEventName": "Stop"}`},
		{"bad session id", `{"hookEventName": "Stop", "sessionId": "a/../b"}`},
		{"bad tool use id", `{"hookEventName": "PostToolUse", "sessionId": "a", "toolUseId": "x/y"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.body)); err == nil {
				t.Errorf("Parse(%s) succeeded, want error", tt.body)
			}
		})
	}
}

func TestLoggingOnlyClassification(t *testing.T) {
	for _, name := range []string{EventSessionStart, EventNotification, EventSubagentStop, EventTeammateIdle, EventTaskCompleted, EventSubagentStart} {
		if !LoggingOnly(name) {
			t.Errorf("%s should be logging-only", name)
		}
		if !Known(name) {
			t.Errorf("%s should be known", name)
		}
	}
	for _, name := range []string{EventUserPromptSubmit, EventStop, EventPreCompact, EventPermissionRequest} {
		if LoggingOnly(name) {
			t.Errorf("%s should drive the machine", name)
		}
	}
	if Known("TotallyMadeUp") {
		t.Error("unknown event reported as known")
	}
}

func TestParsedToolInputMalformed(t *testing.T) {
	p := &Payload{ToolInput: []byte(`"not an object"`)}
	if in := p.ParsedToolInput(); in != (ToolInput{}) {
		t.Errorf("malformed toolInput should yield zero value, got %+v", in)
	}
}
