package registry

import (
	"context"
	"os"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// RunStaleSweeper loops the stale check until ctx is done.
func (r *Registry) RunStaleSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepStale(ctx)
		}
	}
}

// SweepStale runs one pass of the periodic reconciliation:
//
//   - a session stuck on working with no activity past the threshold is
//     demoted via STOP (a crashed agent never sends its Stop hook);
//   - a review session whose worktree directory vanished was merged or
//     discarded and gets WORKTREE_DELETED.
//
// tasking is deliberately exempt from the silence check: sub-agents can
// run long without touching the transcript.
func (r *Registry) SweepStale(ctx context.Context) {
	now := r.now()

	type pending struct {
		id    string
		event statemachine.Event
	}
	var demote []pending

	for _, v := range r.Views() {
		switch v.State {
		case statemachine.StateWorking:
			if !v.LastActivityAt.IsZero() && now.Sub(v.LastActivityAt) > r.cfg.StaleThreshold {
				demote = append(demote, pending{v.SessionID, statemachine.EventStop})
			}
		case statemachine.StateReview:
			if v.Git.WorktreeRoot != "" && !dirExists(v.Git.WorktreeRoot) {
				demote = append(demote, pending{v.SessionID, statemachine.EventWorktreeDeleted})
			}
		}
	}

	for _, p := range demote {
		if r.transitionSession(p.id, p.event, auditMeta{source: "stale-check"}) {
			logging.Info(logging.WithSession(ctx, p.id), "stale sweep demoted session")
		}
	}
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
