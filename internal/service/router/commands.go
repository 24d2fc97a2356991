package router

import (
	"context"

	"github.com/nmorales/voicedesk/internal/service/stats"
)

// User commands run through the same loop as events so every mutation
// keeps strict single-consumer ordering.

type commandKind int

const (
	cmdStartCall commandKind = iota
	cmdStopCall
	cmdClearTranscript
	cmdExport
	cmdStats
	cmdScroll
)

type commandResult struct {
	err      error
	filename string
	content  string
	stats    stats.Snapshot
}

type command struct {
	kind  commandKind
	reply chan commandResult
}

func (r *Router) handleCommand(cmd command) {
	var res commandResult
	switch cmd.kind {
	case cmdStartCall:
		res.err = r.tracker.RequestStart()
	case cmdStopCall:
		res.err = r.tracker.RequestStop()
	case cmdClearTranscript:
		r.store.Clear()
	case cmdExport:
		res.filename = r.store.ExportFilename()
		res.content = r.store.Export()
		r.sink.ExportProduced(res.filename, res.content)
	case cmdStats:
		res.stats = r.counters.Collect(r.store, r.tracker.Active())
	case cmdScroll:
		r.sink.ScrollRequested()
	}
	cmd.reply <- res
}

func (r *Router) dispatch(ctx context.Context, kind commandKind) (commandResult, error) {
	cmd := command{kind: kind, reply: make(chan commandResult, 1)}

	select {
	case r.commands <- cmd:
	case <-r.done:
		return commandResult{}, ErrStopped
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-r.done:
		return commandResult{}, ErrStopped
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}

// StartCall asks the tracker to begin a call. Guard failures come back
// as tracker errors; they never change state.
func (r *Router) StartCall(ctx context.Context) error {
	res, err := r.dispatch(ctx, cmdStartCall)
	if err != nil {
		return err
	}
	return res.err
}

// StopCall asks the tracker to end the active call.
func (r *Router) StopCall(ctx context.Context) error {
	res, err := r.dispatch(ctx, cmdStopCall)
	if err != nil {
		return err
	}
	return res.err
}

// ClearTranscript empties the log. Confirmation is the caller's job.
func (r *Router) ClearTranscript(ctx context.Context) error {
	_, err := r.dispatch(ctx, cmdClearTranscript)
	return err
}

// Export produces the plain-text transcript and its download filename.
func (r *Router) Export(ctx context.Context) (filename, content string, err error) {
	res, err := r.dispatch(ctx, cmdExport)
	if err != nil {
		return "", "", err
	}
	return res.filename, res.content, nil
}

// Stats collects a statistics snapshot.
func (r *Router) Stats(ctx context.Context) (stats.Snapshot, error) {
	res, err := r.dispatch(ctx, cmdStats)
	if err != nil {
		return stats.Snapshot{}, err
	}
	return res.stats, nil
}

// ScrollToLatest notifies viewers to jump to the newest message.
func (r *Router) ScrollToLatest(ctx context.Context) error {
	_, err := r.dispatch(ctx, cmdScroll)
	return err
}
