// Package audio provides audio playback for synthesized segments.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Status reports a playback lifecycle change for a track.
type Status struct {
	TrackID  string
	Finished bool
	Err      error
}

// Service defines the interface for segment playback control.
type Service interface {
	// Play starts playback of in-memory audio data. The trackID identifies
	// the segment in Status reports.
	Play(trackID string, data []byte) error
	// Pause pauses current playback.
	Pause()
	// Resume resumes paused playback.
	Resume()
	// Stop stops current playback without emitting a finished status.
	Stop()
	// Shutdown stops playback and releases the device.
	Shutdown()

	// Statuses returns the channel of playback lifecycle reports.
	Statuses() <-chan Status
	// IsPlaying returns true if audio is currently playing (not paused).
	IsPlaying() bool
	// IsPaused returns true if playback is paused.
	IsPaused() bool
	// SetVolume sets playback volume (0.0 to 1.0).
	SetVolume(vol float64)
	// Volume returns current volume level.
	Volume() float64
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the total duration of the current track.
	Duration() time.Duration
}

// Player implements the Service interface using gopxl/beep.
type Player struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	isPaused           bool
	speakerInitialized bool
	currentSampleRate  beep.SampleRate
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format
	currentTrack       string
	reportedTrack      string
	statuses           chan Status
}

// New creates a new Player instance.
func New() *Player {
	return &Player{
		volume:   1.0,
		statuses: make(chan Status, 16),
	}
}

// Statuses returns the channel of playback lifecycle reports.
func (p *Player) Statuses() <-chan Status {
	return p.statuses
}

// Play decodes and starts playback of the given audio data.
func (p *Player) Play(trackID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Stop any current playback and release its streamer
	p.stopLocked()

	streamer, format, err := decodeStreamer(data)
	if err != nil {
		return err
	}

	if err := p.ensureSpeakerInitialized(streamer); err != nil {
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, p.currentSampleRate, streamer)

	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(p.volume),
		Silent:   p.volume <= 0.01,
	}

	p.streamer = volStreamer
	p.trackStreamer = streamer
	p.trackFormat = format
	p.currentTrack = trackID
	if p.reportedTrack == trackID {
		// Replaying a track that finished earlier; it may finish again.
		p.reportedTrack = ""
	}

	p.ctrl = &beep.Ctrl{Streamer: volStreamer, Paused: false}
	p.isPaused = false

	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		// Report off the speaker thread; it must never block on the
		// status channel.
		go p.finished(trackID, streamer)
	})))

	slog.Debug("Audio: playing track", "track", trackID, "bytes", len(data))
	return nil
}

// finished cleans up after natural end-of-track and reports it at most once.
// Only the last finished or stopped track needs remembering: one track plays
// at a time, so an older track's callback can no longer be pending.
func (p *Player) finished(trackID string, streamer beep.StreamSeekCloser) {
	p.mu.Lock()
	if p.currentTrack == trackID {
		p.ctrl = nil
		p.isPaused = false
		p.currentTrack = ""
	}
	already := p.reportedTrack == trackID
	p.reportedTrack = trackID
	p.mu.Unlock()
	streamer.Close()

	if already {
		return
	}
	p.statuses <- Status{TrackID: trackID, Finished: true}
}

// Pause pauses current playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
		p.isPaused = true
	}
}

// Resume resumes paused playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil && p.isPaused {
		speaker.Lock()
		p.ctrl.Paused = false
		speaker.Unlock()
		p.isPaused = false
	}
}

// Stop stops current playback. No finished status is emitted for a stopped
// track.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.currentTrack != "" {
		// Suppress the speaker callback's report for this track.
		p.reportedTrack = p.currentTrack
		p.currentTrack = ""
	}
	if p.trackStreamer != nil {
		p.trackStreamer.Close()
		p.trackStreamer = nil
	}
	if p.ctrl != nil {
		speaker.Clear()
		p.ctrl = nil
		p.isPaused = false
	}
}

// Shutdown stops playback and releases resources.
func (p *Player) Shutdown() {
	p.Stop()
}

func (p *Player) ensureSpeakerInitialized(streamer beep.StreamSeekCloser) error {
	const targetSampleRate = 48000
	if !p.speakerInitialized {
		err := speaker.Init(beep.SampleRate(targetSampleRate), beep.SampleRate(targetSampleRate).N(time.Second/10))
		if err != nil {
			streamer.Close()
			slog.Error("Failed to initialize speaker", "error", err)
			return err
		}
		p.speakerInitialized = true
		p.currentSampleRate = beep.SampleRate(targetSampleRate)
	}
	return nil
}

// IsPlaying returns true if audio is currently playing.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctrl != nil && !p.isPaused
}

// IsPaused returns true if playback is paused.
func (p *Player) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isPaused
}

// SetVolume sets playback volume (0.0 to 1.0).
func (p *Player) SetVolume(vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	p.volume = vol

	if p.streamer != nil {
		speaker.Lock()
		p.streamer.Volume = volumeToPower(vol)
		p.streamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns current volume level.
func (p *Player) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// Position returns the current playback position.
func (p *Player) Position() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.trackStreamer == nil || p.trackFormat.SampleRate == 0 {
		return 0
	}
	return p.trackFormat.SampleRate.D(p.trackStreamer.Position())
}

// Duration returns the total duration of the current track.
func (p *Player) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.trackStreamer == nil || p.trackFormat.SampleRate == 0 {
		return 0
	}
	return p.trackFormat.SampleRate.D(p.trackStreamer.Len())
}

// decodeStreamer decodes in-memory audio data, trying MP3 first and falling
// back to WAV.
func decodeStreamer(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err == nil {
		return streamer, format, nil
	}

	// Fresh reader for the WAV attempt; the MP3 decoder may have consumed
	// part of the first one.
	streamer, format, err = wav.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		slog.Error("Failed to decode audio data", "bytes", len(data), "error", err)
		return nil, beep.Format{}, fmt.Errorf("decode audio: %w", err)
	}

	return streamer, format, nil
}
