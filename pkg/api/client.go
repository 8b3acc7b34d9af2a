// Package api implements the HTTP client for the rovel narration backend.
//
// Every JSON endpoint answers with a uniform envelope {errno, error, data};
// the audio endpoint answers with raw bytes on success and the JSON envelope
// when the segment is not ready yet.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netscane/rovel-desk/pkg/cache"
	"github.com/netscane/rovel-desk/pkg/tracker"
)

const providerName = "rovel-backend"

// Error is a backend-reported failure (errno != 0).
type Error struct {
	Errno   int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.Errno, e.Message)
}

// envelope is the uniform backend response wrapper.
type envelope struct {
	Errno int             `json:"errno"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// Client talks to the rovel backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cacher
	tracker    *tracker.Tracker
}

// New creates a new Client. The cache holds synthesized audio bytes; pass a
// cache.NullCache to disable it.
func New(baseURL string, timeout time.Duration, c cache.Cacher, t *tracker.Tracker) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      c,
		tracker:    t,
	}
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	if env.Errno != 0 {
		c.tracker.TrackAPIFailure(providerName)
		return &Error{Errno: env.Errno, Message: env.Error}
	}

	c.tracker.TrackAPISuccess(providerName)
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("no data in response from %s", endpoint)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	if env.Errno != 0 {
		c.tracker.TrackAPIFailure(providerName)
		return &Error{Errno: env.Errno, Message: env.Error}
	}

	c.tracker.TrackAPISuccess(providerName)
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data from %s: %w", endpoint, err)
	}
	return nil
}

// ListNovels returns the available novels.
func (c *Client) ListNovels(ctx context.Context) ([]Novel, error) {
	var novels []Novel
	if err := c.get(ctx, "/novel/list", &novels); err != nil {
		return nil, err
	}
	return novels, nil
}

// GetNovel returns one novel's metadata, including its total segment count.
func (c *Client) GetNovel(ctx context.Context, id uuid.UUID) (*Novel, error) {
	var novel Novel
	if err := c.post(ctx, "/novel/get", idRequest{ID: id}, &novel); err != nil {
		return nil, err
	}
	return &novel, nil
}

// GetSegments returns a page of a novel's segments.
func (c *Client) GetSegments(ctx context.Context, novelID uuid.UUID, start, limit *int) (*Segments, error) {
	var segs Segments
	if err := c.post(ctx, "/novel/segments", segmentsRequest{NovelID: novelID, Start: start, Limit: limit}, &segs); err != nil {
		return nil, err
	}
	return &segs, nil
}

// ListVoices returns the available voices.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := c.get(ctx, "/voice/list", &voices); err != nil {
		return nil, err
	}
	return voices, nil
}

// Play creates a session on demand and returns it.
func (c *Client) Play(ctx context.Context, novelID, voiceID uuid.UUID, startIndex int) (*PlayResult, error) {
	var res PlayResult
	if err := c.post(ctx, "/session/play", playRequest{NovelID: novelID, VoiceID: voiceID, StartIndex: startIndex}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Seek moves the session cursor; the backend cancels superseded tasks.
func (c *Client) Seek(ctx context.Context, sessionID string, segmentIndex int) (*SeekResult, error) {
	var res SeekResult
	if err := c.post(ctx, "/session/seek", seekRequest{SessionID: sessionID, SegmentIndex: segmentIndex}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ChangeVoice switches the session voice; the backend cancels superseded tasks.
func (c *Client) ChangeVoice(ctx context.Context, sessionID string, voiceID uuid.UUID) (*ChangeVoiceResult, error) {
	var res ChangeVoiceResult
	if err := c.post(ctx, "/session/change_voice", changeVoiceRequest{SessionID: sessionID, VoiceID: voiceID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CloseSession closes the session on the backend.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	var res closeResult
	return c.post(ctx, "/session/close", closeRequest{SessionID: sessionID}, &res)
}

// SubmitInfer submits a batch of segment indices for synthesis and returns
// the acknowledged tasks.
func (c *Client) SubmitInfer(ctx context.Context, sessionID string, indices []int) ([]TaskInfo, error) {
	var res submitResult
	if err := c.post(ctx, "/infer/submit", submitRequest{SessionID: sessionID, SegmentIndices: indices}, &res); err != nil {
		return nil, err
	}
	c.tracker.TrackSubmitted(providerName, len(res.Tasks))
	return res.Tasks, nil
}

// QueryTaskStatus queries current task states, the fallback reconciliation
// path when push delivery is in doubt.
func (c *Client) QueryTaskStatus(ctx context.Context, taskIDs []string) ([]TaskStatusInfo, error) {
	var res statusResult
	if err := c.post(ctx, "/infer/status", statusRequest{TaskIDs: taskIDs}, &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

// GetAudio fetches the synthesized audio for a segment. It returns (nil, nil)
// when the audio is not ready yet: the backend answers the audio route with a
// JSON envelope in that case instead of bytes.
func (c *Client) GetAudio(ctx context.Context, novelID uuid.UUID, segmentIndex int, voiceID uuid.UUID) ([]byte, error) {
	key := fmt.Sprintf("audio:%s:%d:%s", novelID, segmentIndex, voiceID)
	if data, hit := c.cache.GetCache(ctx, key); hit {
		c.tracker.TrackCacheHit(providerName)
		slog.Debug("API: audio cache hit", "segment", segmentIndex)
		return data, nil
	}
	c.tracker.TrackCacheMiss(providerName)

	payload, err := json.Marshal(audioRequest{NovelID: novelID, SegmentIndex: segmentIndex, VoiceID: voiceID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return nil, fmt.Errorf("audio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.tracker.TrackAPIFailure(providerName)
		return nil, fmt.Errorf("audio request returned status %d", resp.StatusCode)
	}

	// A JSON body on the audio route means "not ready yet", not an error.
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("failed to decode audio envelope: %w", err)
		}
		slog.Debug("API: audio not ready", "segment", segmentIndex, "errno", env.Errno)
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.tracker.TrackAPIFailure(providerName)
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}

	c.tracker.TrackAPISuccess(providerName)
	if err := c.cache.SetCache(ctx, key, data); err != nil {
		slog.Warn("API: failed to cache audio", "segment", segmentIndex, "error", err)
	}
	return data, nil
}
