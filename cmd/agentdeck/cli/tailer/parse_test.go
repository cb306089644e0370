package tailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinesMessageCounting(t *testing.T) {
	data := []byte(`{"type":"user","timestamp":"2026-08-24T10:00:00Z","message":{"role":"user","content":"add retry logic"}}
{"type":"assistant","timestamp":"2026-08-24T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Sure."}]}}
{"type":"assistant","timestamp":"2026-08-24T10:00:08Z","message":{"role":"assistant","content":[{"type":"tool_use","text":""}]}}
{"type":"user","timestamp":"2026-08-24T10:00:09Z","message":{"role":"user","content":[{"type":"tool_result"}]}}
`)
	st, consumed := parseLines(data)
	assert.Equal(t, len(data), consumed)

	// The prompt counts, the tool-invoking assistant turn counts; plain
	// assistant text and tool-result plumbing do not.
	assert.Equal(t, 2, st.messageDelta)
	assert.Equal(t, "add retry logic", st.firstPrompt)

	want, _ := time.Parse(time.RFC3339, "2026-08-24T10:00:09Z")
	assert.True(t, st.lastActivityAt.Equal(want))
}

func TestParseLinesTodoProgress(t *testing.T) {
	data := []byte(`{"type":"user","todos":[{"content":"a","status":"completed"},{"content":"b","status":"pending"}]}
{"type":"user","todos":[{"content":"a","status":"completed"},{"content":"b","status":"completed"},{"content":"c","status":"in_progress"}]}
`)
	st, _ := parseLines(data)
	require.NotNil(t, st.todo)
	assert.Equal(t, 3, st.todo.Total)
	assert.Equal(t, 2, st.todo.Completed, "latest todo list wins")
}

func TestParseLinesCollectsRecentSnippets(t *testing.T) {
	data := []byte(`{"type":"user","message":{"content":"add retry logic"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"Adding a backoff loop."}]}}
{"type":"user","message":{"content":[{"type":"tool_result"}]}}
`)
	st, _ := parseLines(data)
	require.Len(t, st.recent, 2, "tool-result plumbing carries no snippet")
	assert.Equal(t, "user: add retry logic", st.recent[0])
	assert.Equal(t, "assistant: Adding a backoff loop.", st.recent[1])
}

func TestParseLinesRecentKeepsNewest(t *testing.T) {
	var data []byte
	for i := 0; i < recentKeep+3; i++ {
		data = append(data, []byte(`{"type":"user","message":{"content":"prompt `+string(rune('a'+i))+`"}}`+"\n")...)
	}
	st, _ := parseLines(data)
	require.Len(t, st.recent, recentKeep)
	assert.Equal(t, "user: prompt "+string(rune('a'+recentKeep+2)), st.recent[recentKeep-1])
}

func TestParseLinesLeavesPartialTail(t *testing.T) {
	full := `{"type":"user","message":{"content":"hello"}}` + "\n"
	partial := `{"type":"user","mess`
	st, consumed := parseLines([]byte(full + partial))

	assert.Equal(t, len(full), consumed)
	assert.Equal(t, 1, st.messageDelta)
}

func TestParseLinesSkipsMalformedTerminatedLine(t *testing.T) {
	data := []byte("not json at all\n" + `{"type":"user","message":{"content":"hi"},"cwd":"/tmp/p"}` + "\n")
	st, consumed := parseLines(data)

	assert.Equal(t, len(data), consumed, "garbage lines are consumed, not retried")
	assert.Equal(t, 1, st.messageDelta)
	assert.Equal(t, "/tmp/p", st.cwd)
}

func TestParseLinesEmpty(t *testing.T) {
	st, consumed := parseLines(nil)
	assert.Zero(t, consumed)
	assert.Zero(t, st.messageDelta)
	assert.Nil(t, st.todo)
}

func TestTrackedFilter(t *testing.T) {
	assert.True(t, tracked("/p/abc-123.jsonl"))
	assert.False(t, tracked("/p/agent-xyz.jsonl"), "sidechain transcripts are ignored")
	assert.False(t, tracked("/p/xyz-sidechain.jsonl"), "sidechain transcripts are ignored")
	assert.False(t, tracked("/p/notes.txt"))
}

func TestSessionIDFor(t *testing.T) {
	assert.Equal(t, "abc-123", sessionIDFor("/home/u/.claude/projects/-tmp-p/abc-123.jsonl"))
}
