// Package model holds the shared domain types for the narration engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskState describes the synthesis state of one segment task.
type TaskState string

// Task states as reported by the backend.
const (
	TaskPending   TaskState = "pending"
	TaskInferring TaskState = "inferring"
	TaskReady     TaskState = "ready"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// ParseTaskState maps a wire state string to a TaskState.
// Unknown values degrade to pending rather than failing the event.
func ParseTaskState(s string) TaskState {
	switch TaskState(s) {
	case TaskInferring, TaskReady, TaskFailed, TaskCancelled:
		return TaskState(s)
	default:
		return TaskPending
	}
}

// Terminal reports whether the state is final for a task.
func (s TaskState) Terminal() bool {
	return s == TaskReady || s == TaskFailed || s == TaskCancelled
}

// SegmentTask tracks one synthesis task for one segment within one session.
// The task id stays empty until the first acknowledgement arrives.
type SegmentTask struct {
	SessionID    string    `json:"session_id"`
	TaskID       string    `json:"task_id"`
	SegmentIndex int       `json:"segment_index"`
	State        TaskState `json:"state"`
	DurationMS   int       `json:"duration_ms,omitempty"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is the active playback context assigned by the backend.
type Session struct {
	ID      string    `json:"session_id"`
	NovelID uuid.UUID `json:"novel_id"`
	VoiceID uuid.UUID `json:"voice_id"`
	Cursor  int       `json:"cursor"`
}

// PlaybackState is the sequencer state.
type PlaybackState string

// Playback states.
const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackLoading PlaybackState = "loading"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)
