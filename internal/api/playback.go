package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/netscane/rovel-desk/pkg/engine"
)

// Controller is the engine surface the playback endpoints drive.
type Controller interface {
	Play(novelID, voiceID uuid.UUID, startIndex int) error
	Seek(index int) error
	ChangeVoice(voiceID uuid.UUID) error
	Pause() error
	Resume() error
	StopPlayback() error
	CloseSession() error
	Snapshot() *engine.Snapshot
}

// PlaybackHandler handles session and playback endpoints.
type PlaybackHandler struct {
	engine Controller
}

// NewPlaybackHandler creates a new PlaybackHandler.
func NewPlaybackHandler(eng Controller) *PlaybackHandler {
	return &PlaybackHandler{engine: eng}
}

// PlayRequest starts playback of a novel.
type PlayRequest struct {
	NovelID    uuid.UUID `json:"novel_id"`
	VoiceID    uuid.UUID `json:"voice_id"`
	StartIndex int       `json:"start_index"`
}

// SeekRequest jumps to a segment.
type SeekRequest struct {
	SegmentIndex int `json:"segment_index"`
}

// ChangeVoiceRequest switches the session voice.
type ChangeVoiceRequest struct {
	VoiceID uuid.UUID `json:"voice_id"`
}

// ControlRequest carries a playback control command.
type ControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "stop", "close"
}

// HandleState handles GET /api/state
func (h *PlaybackHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

// HandlePlay handles POST /api/playback/play
func (h *PlaybackHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NovelID == uuid.Nil || req.VoiceID == uuid.Nil {
		http.Error(w, "novel_id and voice_id are required", http.StatusBadRequest)
		return
	}
	if req.StartIndex < 0 {
		http.Error(w, "start_index must not be negative", http.StatusBadRequest)
		return
	}
	if err := h.engine.Play(req.NovelID, req.VoiceID, req.StartIndex); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeAccepted(w, "play")
}

// HandleSeek handles POST /api/playback/seek
func (h *PlaybackHandler) HandleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SegmentIndex < 0 {
		http.Error(w, "segment_index must not be negative", http.StatusBadRequest)
		return
	}
	if err := h.engine.Seek(req.SegmentIndex); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeAccepted(w, "seek")
}

// HandleChangeVoice handles POST /api/playback/voice
func (h *PlaybackHandler) HandleChangeVoice(w http.ResponseWriter, r *http.Request) {
	var req ChangeVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.VoiceID == uuid.Nil {
		http.Error(w, "voice_id is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.ChangeVoice(req.VoiceID); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeAccepted(w, "voice")
}

// HandleControl handles POST /api/playback/control
func (h *PlaybackHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = h.engine.Pause()
	case "resume":
		err = h.engine.Resume()
	case "stop":
		err = h.engine.StopPlayback()
	case "close":
		err = h.engine.CloseSession()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeAccepted(w, req.Action)
}

// writeAccepted acknowledges an intent. Intents settle asynchronously; the
// outcome shows up in the state snapshot.
func writeAccepted(w http.ResponseWriter, action string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "action": action}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
