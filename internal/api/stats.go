package api

import (
	"net/http"

	"github.com/netscane/rovel-desk/pkg/tracker"
)

// StatsHandler serves backend call and reconciliation counters.
type StatsHandler struct {
	tracker *tracker.Tracker
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(trk *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: trk}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.tracker.Snapshot())
}
