package api

import (
	"encoding/json"
	"net/http"

	"github.com/netscane/rovel-desk/pkg/audio"
)

// AudioHandler handles audio device endpoints.
type AudioHandler struct {
	audio audio.Service
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(svc audio.Service) *AudioHandler {
	return &AudioHandler{audio: svc}
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AudioStatusResponse represents the audio device status.
type AudioStatusResponse struct {
	IsPlaying  bool    `json:"is_playing"`
	IsPaused   bool    `json:"is_paused"`
	Volume     float64 `json:"volume"`
	PositionMS int64   `json:"position_ms"`
	DurationMS int64   `json:"duration_ms"`
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		http.Error(w, "volume must be between 0.0 and 1.0", http.StatusBadRequest)
		return
	}
	h.audio.SetVolume(req.Volume)
	writeJSON(w, map[string]float64{"volume": h.audio.Volume()})
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AudioStatusResponse{
		IsPlaying:  h.audio.IsPlaying(),
		IsPaused:   h.audio.IsPaused(),
		Volume:     h.audio.Volume(),
		PositionMS: h.audio.Position().Milliseconds(),
		DurationMS: h.audio.Duration().Milliseconds(),
	})
}
