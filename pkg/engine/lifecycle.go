package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/netscane/rovel-desk/pkg/api"
	"github.com/netscane/rovel-desk/pkg/model"
)

// handlePlay starts playback. With an existing stopped session for the same
// novel and voice it restarts locally from the current cursor; otherwise it
// asks the backend for a session, which also cancels nothing on the server
// side because sessions are independent.
func (e *Engine) handlePlay(novelID, voiceID uuid.UUID, startIndex int) {
	if e.session != nil && e.playback == model.PlaybackStopped &&
		e.session.NovelID == novelID && e.session.VoiceID == voiceID {
		slog.Info("Engine: restarting stopped session", "session", e.session.ID, "cursor", e.session.Cursor)
		e.playback = model.PlaybackLoading
		e.submitWindow()
		e.startFetchIfReady()
		return
	}

	if e.session != nil {
		// Switching novel or voice via play replaces the session.
		e.teardownSession(true)
	}

	e.playback = model.PlaybackLoading
	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		novel, err := transport.GetNovel(ctx, novelID)
		if err != nil {
			e.postFact(fact{kind: factSessionFailed, err: err})
			return
		}
		res, err := transport.Play(ctx, novelID, voiceID, startIndex)
		if err != nil {
			e.postFact(fact{kind: factSessionFailed, err: err})
			return
		}
		e.postFact(fact{kind: factSessionStarted, play: res, novel: novel})
	})
}

func (e *Engine) handleSessionStarted(res *api.PlayResult, novel *api.Novel) {
	e.session = &model.Session{
		ID:      res.SessionID,
		NovelID: res.NovelID,
		VoiceID: res.VoiceID,
		Cursor:  res.CurrentIndex,
	}
	e.novel = novel
	e.table.Clear()
	e.playback = model.PlaybackLoading
	e.pushc.Connect(res.SessionID)
	slog.Info("Engine: session started",
		"session", res.SessionID, "novel", novel.Title, "segments", novel.TotalSegments, "cursor", res.CurrentIndex)
	e.submitWindow()
}

func (e *Engine) handleSessionFailed(err error) {
	slog.Warn("Engine: failed to start session", "error", err)
	e.setError("failed to start playback: " + err.Error())
	e.playback = model.PlaybackStopped
}

// handleSeek jumps to another segment. The table is cleared before the new
// window is submitted so no entry from the old position survives into it.
func (e *Engine) handleSeek(index int) {
	if e.session == nil {
		e.setError("no active session")
		return
	}
	if e.novel != nil && (index < 0 || index >= e.novel.TotalSegments) {
		e.setError("seek index out of range")
		return
	}

	e.player.Stop()
	e.table.Clear()
	e.playback = model.PlaybackLoading
	e.fetchInFlight = false

	sessionID := e.session.ID
	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		res, err := transport.Seek(ctx, sessionID, index)
		if err != nil {
			e.postFact(fact{kind: factSeekFailed, err: err})
			return
		}
		e.postFact(fact{kind: factSeekDone, seek: res})
	})
}

func (e *Engine) handleSeekDone(res *api.SeekResult) {
	if e.session == nil {
		return
	}
	e.adoptSessionID(res.SessionID)
	e.session.Cursor = res.CurrentIndex
	slog.Info("Engine: seek complete",
		"session", res.SessionID, "cursor", res.CurrentIndex, "cancelled", res.CancelledTasks)
	e.submitWindow()
}

func (e *Engine) handleSeekFailed(err error) {
	slog.Warn("Engine: seek failed", "error", err)
	e.setError("seek failed: " + err.Error())
	if e.session != nil {
		// Recover by resubmitting the window at the old cursor.
		e.submitWindow()
	}
}

// handleChangeVoice switches the session voice. All queued audio is for the
// old voice, so playback restarts at the cursor.
func (e *Engine) handleChangeVoice(voiceID uuid.UUID) {
	if e.session == nil {
		e.setError("no active session")
		return
	}

	e.player.Stop()
	e.table.Clear()
	e.fetchInFlight = false
	e.playback = model.PlaybackLoading

	sessionID := e.session.ID
	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		res, err := transport.ChangeVoice(ctx, sessionID, voiceID)
		if err != nil {
			e.postFact(fact{kind: factVoiceChangeFailed, err: err})
			return
		}
		e.postFact(fact{kind: factVoiceChanged, voice: res})
	})
}

func (e *Engine) handleVoiceChanged(res *api.ChangeVoiceResult) {
	if e.session == nil {
		return
	}
	e.adoptSessionID(res.SessionID)
	e.session.VoiceID = res.VoiceID
	slog.Info("Engine: voice changed",
		"session", res.SessionID, "voice", res.VoiceID, "cancelled", res.CancelledTasks)
	e.submitWindow()
}

func (e *Engine) handleVoiceChangeFailed(err error) {
	slog.Warn("Engine: voice change failed", "error", err)
	e.setError("voice change failed: " + err.Error())
	if e.session != nil {
		e.submitWindow()
	}
}

func (e *Engine) handlePause() {
	if e.playback != model.PlaybackPlaying {
		return
	}
	e.player.Pause()
	e.playback = model.PlaybackPaused
}

func (e *Engine) handleResume() {
	if e.playback != model.PlaybackPaused {
		return
	}
	e.player.Resume()
	e.playback = model.PlaybackPlaying
}

// handleStopPlayback halts playback but keeps the session, its cursor and
// any queued task state, so a later play picks up where it left off.
func (e *Engine) handleStopPlayback() {
	e.player.Stop()
	e.playback = model.PlaybackStopped
	e.fetchInFlight = false
}

func (e *Engine) handleClose() {
	e.teardownSession(true)
}

// teardownSession drops all local session state. With remote set, the
// backend is told to close the session as well.
func (e *Engine) teardownSession(remote bool) {
	e.player.Stop()
	e.pushc.Disconnect()
	e.table.Clear()
	e.playback = model.PlaybackStopped
	e.fetchInFlight = false
	e.pushConnected = false

	if e.session == nil {
		return
	}
	sessionID := e.session.ID
	e.session = nil
	e.novel = nil

	if !remote {
		return
	}
	transport := e.transport
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()
		if err := transport.CloseSession(ctx, sessionID); err != nil {
			slog.Warn("Engine: failed to close session", "session", sessionID, "error", err)
			return
		}
		slog.Info("Engine: session closed", "session", sessionID)
	})
}

// adoptSessionID takes over a session id returned by a lifecycle operation.
// The backend may mint a fresh id; the push channel then has to follow it.
func (e *Engine) adoptSessionID(id string) {
	if id == "" || e.session == nil || e.session.ID == id {
		return
	}
	slog.Info("Engine: adopting new session id", "old", e.session.ID, "new", id)
	e.session.ID = id
	e.pushc.Connect(id)
}
