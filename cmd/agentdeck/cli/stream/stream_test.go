package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/auditlog"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/gitinfo"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/publish"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
)

type nopProber struct{}

func (nopProber) Probe(string) gitinfo.Info { return gitinfo.Info{} }

func newStack(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()
	reg := registry.New(registry.Config{}, auditlog.New(t.TempDir()), nopProber{})
	pub := publish.New(context.Background(), reg, nil)
	reg.SetNotifier(pub)
	reg.MarkReady()

	srv := httptest.NewServer(Router(pub))
	t.Cleanup(srv.Close)
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readChange(t *testing.T, conn *websocket.Conn) publish.Change {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var c publish.Change
	require.NoError(t, conn.ReadJSON(&c))
	return c
}

func TestStreamDeliversLiveChanges(t *testing.T) {
	reg, srv := newStack(t)
	conn := dial(t, srv)

	reg.HandleHook(context.Background(), &hooks.Payload{
		HookEventName: hooks.EventUserPromptSubmit,
		SessionID:     "s1",
		Cwd:           "/tmp/p",
	})

	c := readChange(t, conn)
	assert.Equal(t, publish.ChangeInsert, c.Type)
	assert.Equal(t, "s1", c.Session.SessionID)
	assert.Equal(t, "working", string(c.Session.Status))
}

func TestStreamSendsCurrentWorldFirst(t *testing.T) {
	reg, srv := newStack(t)

	reg.HandleHook(context.Background(), &hooks.Payload{
		HookEventName: hooks.EventUserPromptSubmit,
		SessionID:     "early",
	})

	conn := dial(t, srv)
	c := readChange(t, conn)
	assert.Equal(t, publish.ChangeInsert, c.Type)
	assert.Equal(t, "early", c.Session.SessionID)
}

func TestStreamDeliversDelete(t *testing.T) {
	reg, srv := newStack(t)
	conn := dial(t, srv)

	ctx := context.Background()
	reg.HandleHook(ctx, &hooks.Payload{HookEventName: hooks.EventUserPromptSubmit, SessionID: "s1"})
	readChange(t, conn) // insert

	reg.Remove("s1")
	c := readChange(t, conn)
	assert.Equal(t, publish.ChangeDelete, c.Type)
	assert.Equal(t, "s1", c.Session.SessionID)
}

func TestSessionsEndpoint(t *testing.T) {
	reg, srv := newStack(t)
	reg.HandleHook(context.Background(), &hooks.Payload{
		HookEventName: hooks.EventUserPromptSubmit,
		SessionID:     "s1",
	})

	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
