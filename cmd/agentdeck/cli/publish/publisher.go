// Package publish turns registry changes into an ordered stream of
// session snapshot events. It is the only component subscribers talk to,
// and it never holds a registry lock while delivering.
package publish

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
)

// ChangeType tags a stream event.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one stream event: a snapshot and what happened to it.
type Change struct {
	Type    ChangeType `json:"type"`
	Session Snapshot   `json:"session"`
}

// Summarizer produces the goal/summary text for a session from its
// original prompt and recent transcript snippets. Implementations may be
// slow or fail; the publisher never waits on them.
type Summarizer interface {
	Summarize(ctx context.Context, sessionID, prompt string, recent []string) (goal, summary string, err error)
}

// Subscription is one subscriber's view of the stream. C is closed when
// the subscriber falls too far behind or the subscription is closed.
type Subscription struct {
	C <-chan Change

	p  *Publisher
	ch chan Change
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.p.unsubscribe(s)
}

type summaryFields struct {
	goal    string
	summary string
}

// Publisher implements registry.Notifier. It keeps the last emitted
// snapshot per session and suppresses no-op updates.
type Publisher struct {
	ctx context.Context
	reg *registry.Registry
	sum Summarizer

	mu        sync.Mutex
	last      map[string]Snapshot
	summaries map[string]summaryFields
	inflight  map[string]bool
	subs      map[*Subscription]struct{}
}

// New creates a publisher. sum may be nil, in which case goal/summary
// fields stay empty. ctx bounds all summarizer calls.
func New(ctx context.Context, reg *registry.Registry, sum Summarizer) *Publisher {
	return &Publisher{
		ctx:       ctx,
		reg:       reg,
		sum:       sum,
		last:      make(map[string]Snapshot),
		summaries: make(map[string]summaryFields),
		inflight:  make(map[string]bool),
		subs:      make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a stream consumer. The current world arrives first
// as one insert per live session; buffer bounds how far the consumer may
// lag before being dropped.
func (p *Publisher) Subscribe(buffer int) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	if buffer < len(p.last)+16 {
		buffer = len(p.last) + 16
	}
	ch := make(chan Change, buffer)
	for _, snap := range p.last {
		ch <- Change{Type: ChangeInsert, Session: snap}
	}

	sub := &Subscription{C: ch, p: p, ch: ch}
	p.subs[sub] = struct{}{}
	return sub
}

func (p *Publisher) unsubscribe(sub *Subscription) {
	p.mu.Lock()
	_, ok := p.subs[sub]
	if ok {
		delete(p.subs, sub)
	}
	p.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// SessionChanged re-derives the session's snapshot and emits an insert or
// update when the observable fields moved.
func (p *Publisher) SessionChanged(sessionID string) {
	var kickSummarizer bool
	p.mu.Lock()
	// The view is fetched under the publisher lock: two racing
	// notifications would otherwise be free to publish the older view
	// second and leave subscribers on a stale status.
	v, ok := p.reg.View(sessionID)
	if !ok {
		p.mu.Unlock()
		return
	}
	sf := p.summaries[sessionID]
	snap := buildSnapshot(v, sf.goal, sf.summary)

	prev, seen := p.last[sessionID]
	switch {
	case !seen:
		p.last[sessionID] = snap
		p.emitLocked(Change{Type: ChangeInsert, Session: snap})
	case shouldEmit(prev, snap):
		p.last[sessionID] = snap
		p.emitLocked(Change{Type: ChangeUpdate, Session: snap})
	}

	if p.sum != nil && sf.goal == "" && v.OriginalPrompt != "" && !p.inflight[sessionID] {
		p.inflight[sessionID] = true
		kickSummarizer = true
	}
	p.mu.Unlock()

	if kickSummarizer {
		go p.summarize(sessionID, v.OriginalPrompt, v.RecentEntries)
	}
}

// SessionRemoved emits exactly one delete carrying the last known snapshot.
func (p *Publisher) SessionRemoved(sessionID string) {
	p.mu.Lock()
	snap, seen := p.last[sessionID]
	if seen {
		delete(p.last, sessionID)
		delete(p.summaries, sessionID)
		delete(p.inflight, sessionID)
		p.emitLocked(Change{Type: ChangeDelete, Session: snap})
	}
	p.mu.Unlock()
}

// Snapshots returns the currently published world, for one-shot consumers
// like the health endpoint.
func (p *Publisher) Snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, 0, len(p.last))
	for _, snap := range p.last {
		out = append(out, snap)
	}
	return out
}

// summarize runs one coalesced summarizer call off the hot path. Failure
// leaves the fields empty; the next registry change retries.
func (p *Publisher) summarize(sessionID, prompt string, recent []string) {
	ctx := logging.WithSession(logging.WithComponent(p.ctx, "summarizer"), sessionID)

	goal, summary, err := p.sum.Summarize(p.ctx, sessionID, prompt, recent)

	p.mu.Lock()
	p.inflight[sessionID] = false
	if err == nil && (goal != "" || summary != "") {
		p.summaries[sessionID] = summaryFields{goal: goal, summary: summary}
	}
	p.mu.Unlock()

	if err != nil {
		logging.Warn(ctx, "summarize failed", slog.Any("error", err))
		return
	}
	// Publish the enriched snapshot through the normal path.
	p.SessionChanged(sessionID)
}

// emitLocked fans a change out to every subscriber without blocking. A
// subscriber with a full buffer is dropped; a stalled websocket must not
// stall the daemon.
func (p *Publisher) emitLocked(ch Change) {
	for sub := range p.subs {
		select {
		case sub.ch <- ch:
		default:
			delete(p.subs, sub)
			close(sub.ch)
		}
	}
}
