package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	backend "github.com/netscane/rovel-desk/pkg/api"
)

// Catalog is the backend surface the library endpoints read from.
type Catalog interface {
	ListNovels(ctx context.Context) ([]backend.Novel, error)
	ListVoices(ctx context.Context) ([]backend.Voice, error)
	GetSegments(ctx context.Context, novelID uuid.UUID, start, limit *int) (*backend.Segments, error)
}

// LibraryHandler serves the novel and voice catalogs.
type LibraryHandler struct {
	backend Catalog
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(c Catalog) *LibraryHandler {
	return &LibraryHandler{backend: c}
}

// HandleNovels handles GET /api/novels
func (h *LibraryHandler) HandleNovels(w http.ResponseWriter, r *http.Request) {
	novels, err := h.backend.ListNovels(r.Context())
	if err != nil {
		http.Error(w, "backend unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"novels": novels})
}

// HandleVoices handles GET /api/voices
func (h *LibraryHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.backend.ListVoices(r.Context())
	if err != nil {
		http.Error(w, "backend unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"voices": voices})
}

// HandleSegments handles GET /api/novels/{id}/segments
func (h *LibraryHandler) HandleSegments(w http.ResponseWriter, r *http.Request) {
	novelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid novel id", http.StatusBadRequest)
		return
	}

	start, err := optionalIntParam(r, "start")
	if err != nil {
		http.Error(w, "invalid start parameter", http.StatusBadRequest)
		return
	}
	limit, err := optionalIntParam(r, "limit")
	if err != nil {
		http.Error(w, "invalid limit parameter", http.StatusBadRequest)
		return
	}

	segments, err := h.backend.GetSegments(r.Context(), novelID, start, limit)
	if err != nil {
		http.Error(w, "backend unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, segments)
}

func optionalIntParam(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, strconv.ErrSyntax
	}
	return &v, nil
}
