// Package api exposes the local control surface for the desktop UI.
package api

import (
	"log/slog"
	"net/http"
	"time"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, playback *PlaybackHandler, library *LibraryHandler, stats *StatsHandler, audioH *AudioHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)

	mux.HandleFunc("GET /api/state", playback.HandleState)
	mux.HandleFunc("POST /api/playback/play", playback.HandlePlay)
	mux.HandleFunc("POST /api/playback/seek", playback.HandleSeek)
	mux.HandleFunc("POST /api/playback/voice", playback.HandleChangeVoice)
	mux.HandleFunc("POST /api/playback/control", playback.HandleControl)

	mux.HandleFunc("GET /api/novels", library.HandleNovels)
	mux.HandleFunc("GET /api/novels/{id}/segments", library.HandleSegments)
	mux.HandleFunc("GET /api/voices", library.HandleVoices)

	mux.Handle("GET /api/stats", stats)

	if audioH != nil {
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}
