package tailer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
)

// entry is one newline-delimited transcript record. Only the fields the
// daemon consumes are declared; everything else passes through untouched.
type entry struct {
	Timestamp   string          `json:"timestamp,omitempty"`
	Type        string          `json:"type,omitempty"`
	Cwd         string          `json:"cwd,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	IsSidechain bool            `json:"isSidechain,omitempty"`
	Message     *entryMessage   `json:"message,omitempty"`
	Todos       []todoItem      `json:"todos,omitempty"`
	ToolUse     json.RawMessage `json:"toolUseResult,omitempty"`
}

type entryMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

type todoItem struct {
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
}

// contentBlock is one element of an assistant/user content list.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// How much recent conversation a batch carries for the summarizer.
const (
	recentKeep       = 5
	recentSnippetMax = 200
)

// stats is what a batch of parsed lines contributed.
type stats struct {
	lastActivityAt time.Time
	messageDelta   int
	todo           *registry.TodoProgress
	recent         []string

	// Bootstrap-only extras, taken from the earliest entries seen.
	cwd         string
	firstPrompt string
}

// addRecent keeps the newest conversational snippets, oldest dropped.
func (st *stats) addRecent(role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(text) > recentSnippetMax {
		text = text[:recentSnippetMax]
	}
	st.recent = append(st.recent, role+": "+text)
	if len(st.recent) > recentKeep {
		st.recent = st.recent[len(st.recent)-recentKeep:]
	}
}

// blocks decodes the content field, which is either a bare string or a
// list of typed blocks. A bare string comes back as one text block.
func (m *entryMessage) blocks() []contentBlock {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		if s == "" {
			return nil
		}
		return []contentBlock{{Type: "text", Text: s}}
	}
	var list []contentBlock
	if err := json.Unmarshal(m.Content, &list); err != nil {
		return nil
	}
	return list
}

// isUserPrompt reports whether e is a human prompt rather than tool-result
// plumbing carried on the user role.
func (e *entry) isUserPrompt() bool {
	if e.Type != "user" {
		return false
	}
	bs := e.Message.blocks()
	hasText := false
	for _, b := range bs {
		switch b.Type {
		case "tool_result":
			return false
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				hasText = true
			}
		}
	}
	return hasText
}

// hasToolUse reports whether any content block is a tool_use.
func (e *entry) hasToolUse() bool {
	for _, b := range e.Message.blocks() {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

// countsAsMessage implements the message-count rule: user prompts count,
// and assistant entries count only when they invoke a tool.
func (e *entry) countsAsMessage() bool {
	if e.isUserPrompt() {
		return true
	}
	return e.Type == "assistant" && e.hasToolUse()
}

// parseLines consumes complete lines from data, returning the extracted
// stats and the number of bytes consumed. An unterminated final line is
// left for the next read; a malformed but terminated line is skipped and
// its bytes are still consumed.
func parseLines(data []byte) (stats, int) {
	var st stats
	consumed := 0

	for consumed < len(data) {
		nl := bytes.IndexByte(data[consumed:], '\n')
		if nl < 0 {
			break
		}
		line := data[consumed : consumed+nl]
		consumed += nl + 1

		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		applyEntry(&st, &e)
	}
	return st, consumed
}

func applyEntry(st *stats, e *entry) {
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		st.lastActivityAt = ts
	}
	if e.countsAsMessage() {
		st.messageDelta++
	}
	if e.Todos != nil {
		todo := registry.TodoProgress{Total: len(e.Todos)}
		for _, item := range e.Todos {
			if item.Status == "completed" {
				todo.Completed++
			}
		}
		st.todo = &todo
	}
	if st.cwd == "" && e.Cwd != "" {
		st.cwd = e.Cwd
	}
	if e.isUserPrompt() || e.Type == "assistant" {
		for _, b := range e.Message.blocks() {
			if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
				st.addRecent(e.Type, b.Text)
				break
			}
		}
	}
	if st.firstPrompt == "" && e.isUserPrompt() {
		for _, b := range e.Message.blocks() {
			if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
				st.firstPrompt = b.Text
				break
			}
		}
	}
}
