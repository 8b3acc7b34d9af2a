// Package engine is the playback synchronization core. It owns the active
// session, the segment task table and the playback sequencer, and reconciles
// task state arriving from submission acknowledgements, push notifications
// and the periodic status query into a single view.
//
// All state is owned by one goroutine. User intents, worker results, push
// events and audio reports arrive over channels and are handled one at a
// time, so no handler ever observes a half-applied transition. Readers get a
// consistent view through the published Snapshot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/netscane/rovel-desk/pkg/api"
	"github.com/netscane/rovel-desk/pkg/audio"
	"github.com/netscane/rovel-desk/pkg/config"
	"github.com/netscane/rovel-desk/pkg/model"
	"github.com/netscane/rovel-desk/pkg/push"
	"github.com/netscane/rovel-desk/pkg/task"
	"github.com/netscane/rovel-desk/pkg/tracker"
)

// trackerProvider labels engine-side counters in the stats tracker.
const trackerProvider = "engine"

// Transport is the backend surface the engine drives.
type Transport interface {
	GetNovel(ctx context.Context, id uuid.UUID) (*api.Novel, error)
	Play(ctx context.Context, novelID, voiceID uuid.UUID, startIndex int) (*api.PlayResult, error)
	Seek(ctx context.Context, sessionID string, segmentIndex int) (*api.SeekResult, error)
	ChangeVoice(ctx context.Context, sessionID string, voiceID uuid.UUID) (*api.ChangeVoiceResult, error)
	CloseSession(ctx context.Context, sessionID string) error
	SubmitInfer(ctx context.Context, sessionID string, indices []int) ([]api.TaskInfo, error)
	QueryTaskStatus(ctx context.Context, taskIDs []string) ([]api.TaskStatusInfo, error)
	GetAudio(ctx context.Context, novelID uuid.UUID, segmentIndex int, voiceID uuid.UUID) ([]byte, error)
}

// Player is the audio surface the engine drives.
type Player interface {
	Play(trackID string, data []byte) error
	Pause()
	Resume()
	Stop()
	Statuses() <-chan audio.Status
}

// PushControl manages the session push channel.
type PushControl interface {
	Connect(sessionID string)
	Disconnect()
	Events() <-chan push.Event
}

// Snapshot is a read-only view of the engine state, published after every
// handled event.
type Snapshot struct {
	Session       *model.Session            `json:"session,omitempty"`
	NovelTitle    string                    `json:"novel_title,omitempty"`
	TotalSegments int                       `json:"total_segments"`
	Playback      model.PlaybackState       `json:"playback"`
	Cursor        int                       `json:"cursor"`
	LastError     string                    `json:"last_error,omitempty"`
	PushConnected bool                      `json:"push_connected"`
	Tasks         map[int]model.SegmentTask `json:"tasks"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Engine coordinates session lifecycle, prefetch and playback sequencing.
type Engine struct {
	cfg       config.EngineConfig
	transport Transport
	player    Player
	pushc     PushControl
	trk       *tracker.Tracker

	intents chan intent
	facts   chan fact
	quit    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool

	// Loop-owned state. Handlers run on the engine goroutine only.
	session       *model.Session
	novel         *api.Novel
	table         *task.Table
	playback      model.PlaybackState
	lastError     string
	errorAt       time.Time
	pushConnected bool
	fetchInFlight bool

	snapshot atomic.Pointer[Snapshot]
	now      func() time.Time

	// synchronous makes spawn and postFact run inline, for tests that drive
	// handlers directly.
	synchronous bool
}

// New creates an engine. Call Run to start the event loop.
func New(cfg config.EngineConfig, transport Transport, player Player, pushc PushControl, trk *tracker.Tracker) *Engine {
	e := &Engine{
		cfg:       cfg,
		transport: transport,
		player:    player,
		pushc:     pushc,
		trk:       trk,
		intents:   make(chan intent, 16),
		facts:     make(chan fact, 64),
		quit:      make(chan struct{}),
		table:     task.NewTable(),
		playback:  model.PlaybackStopped,
		now:       time.Now,
	}
	e.publish()
	return e
}

// Snapshot returns the most recently published state view.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Run drives the event loop until Stop is called. It blocks.
func (e *Engine) Run() {
	resubmit := time.NewTicker(e.cfg.ResubmitInterval.Std())
	defer resubmit.Stop()
	sweep := time.NewTicker(e.cfg.StaleSweep.Std())
	defer sweep.Stop()
	errClear := time.NewTicker(e.cfg.ErrorClearAfter.Std())
	defer errClear.Stop()

	for {
		select {
		case <-e.quit:
			e.shutdown()
			return
		case in := <-e.intents:
			e.handleIntent(in)
		case f := <-e.facts:
			e.handleFact(f)
		case ev := <-e.pushc.Events():
			e.handlePushEvent(ev)
		case st := <-e.player.Statuses():
			e.handleAudioStatus(st)
		case <-resubmit.C:
			e.handleResubmitTick()
		case <-sweep.C:
			e.handleSweepTick()
		case <-errClear.C:
			e.handleErrorClearTick()
		}
		e.publish()
	}
}

// Stop shuts the engine down. Safe to call more than once.
func (e *Engine) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		close(e.quit)
	}
	e.wg.Wait()
}

// shutdown runs on the engine goroutine when the loop exits.
func (e *Engine) shutdown() {
	e.player.Stop()
	e.pushc.Disconnect()
	if e.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.transport.CloseSession(ctx, e.session.ID); err != nil {
			slog.Warn("Engine: failed to close session on shutdown", "session", e.session.ID, "error", err)
		}
		e.session = nil
	}
	e.publish()
}

// publish refreshes the snapshot from loop-owned state.
func (e *Engine) publish() {
	s := &Snapshot{
		Playback:      e.playback,
		LastError:     e.lastError,
		PushConnected: e.pushConnected,
		Tasks:         e.table.Snapshot(),
		UpdatedAt:     e.now(),
	}
	if e.session != nil {
		sess := *e.session
		s.Session = &sess
		s.Cursor = sess.Cursor
	}
	if e.novel != nil {
		s.NovelTitle = e.novel.Title
		s.TotalSegments = e.novel.TotalSegments
	}
	e.snapshot.Store(s)
}

// spawn runs a worker. Workers talk to the network and must never touch
// loop-owned state directly; they report back through postFact.
func (e *Engine) spawn(f func()) {
	if e.synchronous {
		f()
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f()
	}()
}

func (e *Engine) postFact(f fact) {
	if e.synchronous {
		e.handleFact(f)
		return
	}
	select {
	case e.facts <- f:
	case <-e.quit:
	}
}

// setError records a user-visible error that the clear tick will expire.
func (e *Engine) setError(msg string) {
	e.lastError = msg
	e.errorAt = e.now()
}

// trackID names the audio track for one segment of one session.
func trackID(sessionID string, index int) string {
	return fmt.Sprintf("%s:%d", sessionID, index)
}
