package api

import "github.com/google/uuid"

// Novel describes one uploaded novel and its segmentation.
type Novel struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	TotalSegments int       `json:"total_segments"`
	Status        string    `json:"status"`
	CreatedAt     string    `json:"created_at"`
}

// Voice describes one reference voice available for synthesis.
type Voice struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// Segment is one unit of narrated text.
type Segment struct {
	Index     int    `json:"index"`
	Content   string `json:"content"`
	CharCount int    `json:"char_count"`
}

// Segments is a paginated slice of a novel's segments.
type Segments struct {
	NovelID  uuid.UUID `json:"novel_id"`
	Total    int       `json:"total"`
	Segments []Segment `json:"segments"`
}

// PlayResult is the response to a play request; the backend creates the
// session on demand.
type PlayResult struct {
	SessionID    string    `json:"session_id"`
	NovelID      uuid.UUID `json:"novel_id"`
	VoiceID      uuid.UUID `json:"voice_id"`
	CurrentIndex int       `json:"current_index"`
}

// SeekResult is the response to a seek request. The cancelled-task count is
// informational only.
type SeekResult struct {
	SessionID      string `json:"session_id"`
	CurrentIndex   int    `json:"current_index"`
	CancelledTasks int    `json:"cancelled_tasks"`
}

// ChangeVoiceResult is the response to a voice change request.
type ChangeVoiceResult struct {
	SessionID      string    `json:"session_id"`
	VoiceID        uuid.UUID `json:"voice_id"`
	CancelledTasks int       `json:"cancelled_tasks"`
}

// TaskInfo is one acknowledged task from a submission batch. A cache hit on
// the backend can report "ready" here directly, before any push arrives.
type TaskInfo struct {
	TaskID       string `json:"task_id"`
	SegmentIndex int    `json:"segment_index"`
	State        string `json:"state"`
}

// TaskStatusInfo is one task's state from the status-query fallback path.
type TaskStatusInfo struct {
	TaskID       string `json:"task_id"`
	SegmentIndex int    `json:"segment_index"`
	State        string `json:"state"`
	Error        string `json:"error,omitempty"`
}

type submitResult struct {
	Tasks []TaskInfo `json:"tasks"`
}

type statusResult struct {
	Tasks []TaskStatusInfo `json:"tasks"`
}

type closeResult struct {
	SessionID string `json:"session_id"`
}

// Request bodies.

type playRequest struct {
	NovelID    uuid.UUID `json:"novel_id"`
	VoiceID    uuid.UUID `json:"voice_id"`
	StartIndex int       `json:"start_index"`
}

type seekRequest struct {
	SessionID    string `json:"session_id"`
	SegmentIndex int    `json:"segment_index"`
}

type changeVoiceRequest struct {
	SessionID string    `json:"session_id"`
	VoiceID   uuid.UUID `json:"voice_id"`
}

type closeRequest struct {
	SessionID string `json:"session_id"`
}

type submitRequest struct {
	SessionID      string `json:"session_id"`
	SegmentIndices []int  `json:"segment_indices"`
}

type statusRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type idRequest struct {
	ID uuid.UUID `json:"id"`
}

type segmentsRequest struct {
	NovelID uuid.UUID `json:"novel_id"`
	Start   *int      `json:"start,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
}

type audioRequest struct {
	NovelID      uuid.UUID `json:"novel_id"`
	SegmentIndex int       `json:"segment_index"`
	VoiceID      uuid.UUID `json:"voice_id"`
}
