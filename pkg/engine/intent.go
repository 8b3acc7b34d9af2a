package engine

import (
	"errors"

	"github.com/google/uuid"

	"github.com/netscane/rovel-desk/pkg/api"
)

// ErrStopped is returned by intent methods after the engine shut down.
var ErrStopped = errors.New("engine stopped")

type intentKind int

const (
	intentPlay intentKind = iota
	intentSeek
	intentChangeVoice
	intentPause
	intentResume
	intentStop
	intentClose
)

// intent is one user request. Intents are accepted immediately; failures
// surface in the snapshot's last error.
type intent struct {
	kind    intentKind
	novelID uuid.UUID
	voiceID uuid.UUID
	index   int
}

type factKind int

const (
	factSessionStarted factKind = iota
	factSessionFailed
	factSeekDone
	factSeekFailed
	factVoiceChanged
	factVoiceChangeFailed
	factAck
	factSubmitFailed
	factStatus
	factAudio
)

// fact is one background worker result, applied on the engine goroutine.
type fact struct {
	kind      factKind
	sessionID string
	err       error

	play  *api.PlayResult
	novel *api.Novel
	seek  *api.SeekResult
	voice *api.ChangeVoiceResult

	acks     []api.TaskInfo
	statuses []api.TaskStatusInfo
	indices  []int

	index int
	data  []byte
}

// Play requests playback of a novel with a voice, starting at startIndex.
func (e *Engine) Play(novelID, voiceID uuid.UUID, startIndex int) error {
	return e.postIntent(intent{kind: intentPlay, novelID: novelID, voiceID: voiceID, index: startIndex})
}

// Seek requests a jump to the given segment index in the active session.
func (e *Engine) Seek(index int) error {
	return e.postIntent(intent{kind: intentSeek, index: index})
}

// ChangeVoice requests a switch to another voice in the active session.
func (e *Engine) ChangeVoice(voiceID uuid.UUID) error {
	return e.postIntent(intent{kind: intentChangeVoice, voiceID: voiceID})
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	return e.postIntent(intent{kind: intentPause})
}

// Resume resumes paused playback.
func (e *Engine) Resume() error {
	return e.postIntent(intent{kind: intentResume})
}

// StopPlayback halts playback, keeping the session alive.
func (e *Engine) StopPlayback() error {
	return e.postIntent(intent{kind: intentStop})
}

// CloseSession ends the active session.
func (e *Engine) CloseSession() error {
	return e.postIntent(intent{kind: intentClose})
}

func (e *Engine) postIntent(in intent) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	if e.synchronous {
		e.handleIntent(in)
		return nil
	}
	select {
	case e.intents <- in:
		return nil
	case <-e.quit:
		return ErrStopped
	}
}

func (e *Engine) handleIntent(in intent) {
	switch in.kind {
	case intentPlay:
		e.handlePlay(in.novelID, in.voiceID, in.index)
	case intentSeek:
		e.handleSeek(in.index)
	case intentChangeVoice:
		e.handleChangeVoice(in.voiceID)
	case intentPause:
		e.handlePause()
	case intentResume:
		e.handleResume()
	case intentStop:
		e.handleStopPlayback()
	case intentClose:
		e.handleClose()
	}
	e.publish()
}

func (e *Engine) handleFact(f fact) {
	switch f.kind {
	case factSessionStarted:
		e.handleSessionStarted(f.play, f.novel)
	case factSessionFailed:
		e.handleSessionFailed(f.err)
	case factSeekDone:
		e.handleSeekDone(f.seek)
	case factSeekFailed:
		e.handleSeekFailed(f.err)
	case factVoiceChanged:
		e.handleVoiceChanged(f.voice)
	case factVoiceChangeFailed:
		e.handleVoiceChangeFailed(f.err)
	case factAck:
		e.handleAck(f.sessionID, f.acks)
	case factSubmitFailed:
		e.handleSubmitFailed(f.sessionID, f.indices, f.err)
	case factStatus:
		e.handleStatus(f.sessionID, f.statuses)
	case factAudio:
		e.handleAudio(f.sessionID, f.index, f.data, f.err)
	}
	e.publish()
}
