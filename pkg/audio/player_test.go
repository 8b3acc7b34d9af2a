package audio

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.Volume() != 1.0 {
		t.Errorf("Expected default volume 1.0, got %f", p.Volume())
	}
	if p.IsPlaying() {
		t.Error("Expected IsPlaying false on fresh player")
	}
	if p.Duration() != 0 {
		t.Error("Expected zero duration without a track")
	}
}

func TestSetVolume_Clamps(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"Low", -0.5, 0},
		{"High", 1.5, 1},
		{"Mid", 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			p.SetVolume(tt.in)
			if p.Volume() != tt.want {
				t.Errorf("SetVolume(%f): got %f, want %f", tt.in, p.Volume(), tt.want)
			}
		})
	}
}

func TestVolumeToPower(t *testing.T) {
	if got := volumeToPower(1.0); got != 0 {
		t.Errorf("unity gain should map to 0, got %f", got)
	}
	if got := volumeToPower(0.5); math.Abs(got+1) > 1e-9 {
		t.Errorf("half volume should map to -1, got %f", got)
	}
	if got := volumeToPower(0.0); got != -10 {
		t.Errorf("silence should map to -10, got %f", got)
	}
}

func TestFinished_ReportsOnce(t *testing.T) {
	p := New()
	p.currentTrack = "seg-3"

	go p.finished("seg-3", nopStreamer{})
	st := <-p.Statuses()
	if st.TrackID != "seg-3" || !st.Finished {
		t.Fatalf("unexpected status: %+v", st)
	}
	if p.IsPlaying() {
		t.Error("finished track should not report playing")
	}

	// Second callback for the same track must be suppressed.
	p.finished("seg-3", nopStreamer{})
	select {
	case st := <-p.Statuses():
		t.Fatalf("duplicate finished report: %+v", st)
	default:
	}
}

func TestFinished_ConsecutiveTracksEachReport(t *testing.T) {
	p := New()

	for _, id := range []string{"seg-1", "seg-2", "seg-3"} {
		p.currentTrack = id
		go p.finished(id, nopStreamer{})
		st := <-p.Statuses()
		if st.TrackID != id || !st.Finished {
			t.Fatalf("track %s: unexpected status %+v", id, st)
		}
	}

	// Dedup state holds only the most recent track; earlier tracks can no
	// longer have callbacks pending.
	if p.reportedTrack != "seg-3" {
		t.Errorf("expected only the last track remembered, got %q", p.reportedTrack)
	}
}

func TestStop_SuppressesFinished(t *testing.T) {
	p := New()
	p.currentTrack = "seg-1"
	p.Stop()

	p.finished("seg-1", nopStreamer{})
	select {
	case st := <-p.Statuses():
		t.Fatalf("stopped track reported finished: %+v", st)
	default:
	}
}

type nopStreamer struct{}

func (nopStreamer) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (nopStreamer) Err() error                              { return nil }
func (nopStreamer) Len() int                                { return 0 }
func (nopStreamer) Position() int                           { return 0 }
func (nopStreamer) Seek(int) error                          { return nil }
func (nopStreamer) Close() error                            { return nil }
