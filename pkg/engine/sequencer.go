package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/netscane/rovel-desk/pkg/audio"
	"github.com/netscane/rovel-desk/pkg/model"
	"github.com/netscane/rovel-desk/pkg/task"
)

// workerTimeout bounds every background backend call.
const workerTimeout = 30 * time.Second

// submitWindow computes the prefetch window at the current cursor and
// submits every index not already tracked. Pending entries are inserted
// before the round trip, so a retry or overlapping tick can never submit the
// same index twice.
func (e *Engine) submitWindow() {
	if e.session == nil || e.novel == nil {
		return
	}

	needed := task.Needed(e.session.Cursor, e.novel.TotalSegments, e.cfg.PrefetchAhead, e.table)
	if len(needed) == 0 {
		return
	}

	sessionID := e.session.ID
	e.table.InsertPending(sessionID, needed)
	slog.Debug("Engine: submitting segments", "session", sessionID, "indices", needed)

	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		acks, err := transport.SubmitInfer(ctx, sessionID, needed)
		if err != nil {
			e.postFact(fact{kind: factSubmitFailed, sessionID: sessionID, indices: needed, err: err})
			return
		}
		e.postFact(fact{kind: factAck, sessionID: sessionID, acks: acks})
	})
}

// handleSubmitFailed leaves the optimistic pending entries in place; the
// stale sweep removes them once they exceed the pending timeout, and the
// next resubmit tick retries the window.
func (e *Engine) handleSubmitFailed(sessionID string, indices []int, err error) {
	slog.Warn("Engine: segment submission failed",
		"session", sessionID, "count", len(indices), "error", err)
	e.setError("submission failed: " + err.Error())
}

// startFetchIfReady fetches the cursor segment's audio when the sequencer is
// waiting on it. Only the cursor is ever fetched: prefetch fills the table,
// not the speaker.
func (e *Engine) startFetchIfReady() {
	if e.session == nil || e.novel == nil || e.playback != model.PlaybackLoading {
		return
	}
	if e.fetchInFlight || !e.table.IsReady(e.session.Cursor) {
		return
	}

	e.fetchInFlight = true
	sessionID := e.session.ID
	novelID := e.session.NovelID
	voiceID := e.session.VoiceID
	index := e.session.Cursor

	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		data, err := transport.GetAudio(ctx, novelID, index, voiceID)
		e.postFact(fact{kind: factAudio, sessionID: sessionID, index: index, data: data, err: err})
	})
}

// handleAudio receives fetched audio bytes. A nil payload without error means
// the backend reported the segment not ready after all; the next resubmit
// tick retries the fetch.
func (e *Engine) handleAudio(sessionID string, index int, data []byte, err error) {
	if e.session == nil || sessionID != e.session.ID || index != e.session.Cursor {
		// Result of a fetch that a seek, voice change or teardown already
		// superseded. Leave fetchInFlight alone: it now belongs to the
		// current fetch, if any.
		slog.Debug("Engine: dropping stale audio result", "session", sessionID, "segment", index)
		return
	}

	e.fetchInFlight = false
	if e.playback != model.PlaybackLoading {
		return
	}

	if err != nil {
		slog.Warn("Engine: audio fetch failed", "segment", index, "error", err)
		e.setError("audio fetch failed: " + err.Error())
		return
	}
	if data == nil {
		slog.Warn("Engine: segment marked ready but audio not available yet", "segment", index)
		return
	}

	id := trackID(sessionID, index)
	if err := e.player.Play(id, data); err != nil {
		slog.Error("Engine: failed to start playback", "segment", index, "error", err)
		e.setError("playback failed: " + err.Error())
		// The audio itself is bad; mark the task failed so the sequencer
		// blocks here instead of refetching forever.
		e.table.Apply(task.Update{
			SessionID:    sessionID,
			SegmentIndex: index,
			State:        model.TaskFailed,
			Error:        "undecodable audio",
		})
		return
	}

	e.playback = model.PlaybackPlaying
	slog.Info("Engine: playing segment", "segment", index, "session", sessionID)
}

// handleAudioStatus advances the cursor when the current track finishes.
func (e *Engine) handleAudioStatus(st audio.Status) {
	if !st.Finished || e.session == nil {
		return
	}
	if st.TrackID != trackID(e.session.ID, e.session.Cursor) {
		slog.Debug("Engine: ignoring finish for stale track", "track", st.TrackID)
		return
	}
	if e.playback != model.PlaybackPlaying && e.playback != model.PlaybackPaused {
		return
	}

	next := e.session.Cursor + 1
	if e.novel != nil && next >= e.novel.TotalSegments {
		slog.Info("Engine: novel finished", "session", e.session.ID)
		e.session.Cursor = next - 1
		e.playback = model.PlaybackStopped
		e.publish()
		return
	}

	e.session.Cursor = next
	e.playback = model.PlaybackLoading
	e.submitWindow()
	e.startFetchIfReady()
	e.publish()
}

// handleResubmitTick drives every retry path: unfilled windows, pending
// fetches, and the status-query fallback while the push channel is down.
func (e *Engine) handleResubmitTick() {
	if e.session == nil {
		return
	}
	e.submitWindow()
	e.startFetchIfReady()

	if e.pushConnected {
		return
	}
	ids := e.table.TaskIDs()
	if len(ids) == 0 {
		// Push channel is down and nothing to poll; try to get it back.
		e.pushc.Connect(e.session.ID)
		return
	}

	sessionID := e.session.ID
	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		statuses, err := transport.QueryTaskStatus(ctx, ids)
		if err != nil {
			slog.Warn("Engine: status query failed", "error", err)
			return
		}
		e.postFact(fact{kind: factStatus, sessionID: sessionID, statuses: statuses})
	})
}

// handleSweepTick drops pending entries that outlived the pending timeout so
// the next resubmit tick can try them again.
func (e *Engine) handleSweepTick() {
	purged := e.table.PurgeStale(e.cfg.PendingTimeout.Std())
	if purged > 0 {
		slog.Warn("Engine: purged stale pending tasks", "count", purged)
		e.submitWindow()
	}
}

func (e *Engine) handleErrorClearTick() {
	if e.lastError == "" {
		return
	}
	if e.now().Sub(e.errorAt) >= e.cfg.ErrorClearAfter.Std() {
		e.lastError = ""
	}
}
