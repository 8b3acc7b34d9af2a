// Package push maintains the websocket channel that delivers task state
// changes and session closures from the backend.
//
// One session channel exists at a time: connecting for a new session tears
// down the previous connection. Dialing happens on a worker goroutine and
// the outcome arrives as a Connected or Error event, so callers never block
// on the network. Decoded events are handed to the engine through a bounded
// queue; the client never touches engine state itself.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Type discriminates push events.
type Type string

// Push event types.
const (
	TypeConnected     Type = "connected"
	TypeDisconnected  Type = "disconnected"
	TypeTaskChanged   Type = "task_changed"
	TypeSessionClosed Type = "session_closed"
	TypeError         Type = "error"
)

// Keepalive timing. The read deadline is refreshed on every frame, ping and
// pong; a half-open connection therefore fails the read within pongWait.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

var dialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

// TaskChange is the payload of a task state notification.
type TaskChange struct {
	SessionID    string `json:"session_id"`
	TaskID       string `json:"task_id"`
	SegmentIndex int    `json:"segment_index"`
	State        string `json:"state"`
	DurationMS   int    `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// sessionClosed is the payload of a server-initiated closure.
type sessionClosed struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Event is one decoded push-channel event.
type Event struct {
	Type      Type
	Task      *TaskChange
	SessionID string
	Reason    string
	Err       error
}

// wireEvent matches the backend's tagged event frame.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client owns the session push channel.
type Client struct {
	baseURL string
	events  chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	gen     int
	dialing string // session id of an in-flight dial, empty if none
}

// NewClient creates a push client for the given websocket base URL
// (e.g. ws://host:port/ws).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan Event, 64),
	}
}

// Events returns the queue of decoded events.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect starts dialing the push channel for the given session, replacing
// any previous connection. It returns immediately; the outcome arrives on
// Events as a Connected or Error event. Redundant calls while a dial for the
// same session is already in flight are no-ops.
func (c *Client) Connect(sessionID string) {
	c.mu.Lock()
	if c.dialing == sessionID {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	c.dialing = sessionID
	gen := c.gen
	c.mu.Unlock()

	go c.dial(sessionID, gen)
}

// Disconnect closes the current connection and abandons any in-flight dial.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Close shuts the client down.
func (c *Client) Close() {
	c.Disconnect()
}

// closeLocked bumps the generation, invalidating the current reader and any
// in-flight dial, and closes the connection if one exists.
func (c *Client) closeLocked() {
	c.gen++
	c.dialing = ""
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// dial runs on its own goroutine so slow or unreachable endpoints never
// stall the caller.
func (c *Client) dial(sessionID string, gen int) {
	url := fmt.Sprintf("%s/session/%s", c.baseURL, sessionID)
	conn, _, err := dialer.Dial(url, nil)

	c.mu.Lock()
	if gen != c.gen {
		// A later Connect or Disconnect superseded this dial.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.dialing = ""
	if err != nil {
		c.mu.Unlock()
		slog.Warn("Push: failed to connect", "url", url, "error", err)
		c.post(Event{Type: TypeError, Err: fmt.Errorf("push connect failed: %w", err)})
		return
	}
	c.conn = conn
	c.mu.Unlock()

	slog.Info("Push: connected", "session", sessionID)
	c.post(Event{Type: TypeConnected, SessionID: sessionID})

	go c.readLoop(conn, gen)
	go c.pingLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := gen == c.gen
			if current {
				c.conn = nil
			}
			c.mu.Unlock()
			if current {
				slog.Warn("Push: connection lost", "error", err)
				c.post(Event{Type: TypeDisconnected})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		event, ok := decodeFrame(data)
		if !ok {
			continue
		}
		c.post(event)
	}
}

// pingLoop keeps the connection alive; a write failure means the read loop
// is about to notice too, so it just exits.
func (c *Client) pingLoop(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := gen == c.gen
		c.mu.Unlock()
		if !current {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return
		}
	}
}

// decodeFrame parses one websocket text frame into an Event.
func decodeFrame(data []byte) (Event, bool) {
	var frame wireEvent
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("Push: failed to parse event frame", "error", err, "frame", string(data))
		return Event{}, false
	}

	switch frame.Event {
	case "TaskStateChanged":
		var tc TaskChange
		if err := json.Unmarshal(frame.Data, &tc); err != nil {
			slog.Warn("Push: failed to parse task change", "error", err)
			return Event{}, false
		}
		return Event{Type: TypeTaskChanged, Task: &tc, SessionID: tc.SessionID}, true
	case "SessionClosed":
		var sc sessionClosed
		if err := json.Unmarshal(frame.Data, &sc); err != nil {
			slog.Warn("Push: failed to parse session closure", "error", err)
			return Event{}, false
		}
		return Event{Type: TypeSessionClosed, SessionID: sc.SessionID, Reason: sc.Reason}, true
	default:
		slog.Warn("Push: unexpected event on session channel", "event", frame.Event)
		return Event{}, false
	}
}

// post enqueues an event without ever blocking the reader; if the engine has
// fallen this far behind, dropping the oldest event is safe because the
// periodic status query reconciles missed task states.
func (c *Client) post(e Event) {
	select {
	case c.events <- e:
	default:
		select {
		case dropped := <-c.events:
			slog.Warn("Push: queue full, dropping oldest event", "type", dropped.Type)
		default:
		}
		select {
		case c.events <- e:
		default:
		}
	}
}
