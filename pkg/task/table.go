// Package task maintains the per-segment synthesis task table and the
// prefetch window policy that keeps it filled ahead of the playback cursor.
package task

import (
	"log/slog"
	"time"

	"github.com/netscane/rovel-desk/pkg/model"
)

// Table holds at most one task per segment index, scoped to one session
// generation. It is owned by the engine goroutine and is not safe for
// concurrent use.
type Table struct {
	tasks map[int]*model.SegmentTask
	now   func() time.Time
}

// NewTable creates an empty task table.
func NewTable() *Table {
	return &Table{
		tasks: make(map[int]*model.SegmentTask),
		now:   time.Now,
	}
}

// Update carries one reconciled fact about a task, from either the
// submission acknowledgement or a push notification.
type Update struct {
	SessionID    string
	TaskID       string
	SegmentIndex int
	State        model.TaskState
	DurationMS   int
	Error        string
}

// InsertPending inserts a pending entry for every index not already present.
// Existing entries are left completely untouched: no identity overwrite, no
// timestamp refresh. This runs before the submission round trip so an index
// can never be submitted twice.
func (t *Table) InsertPending(sessionID string, indices []int) {
	now := t.now()
	for _, idx := range indices {
		if _, ok := t.tasks[idx]; ok {
			continue
		}
		t.tasks[idx] = &model.SegmentTask{
			SessionID:    sessionID,
			SegmentIndex: idx,
			State:        model.TaskPending,
			UpdatedAt:    now,
		}
	}
}

// Apply reconciles one update into the table. If the entry exists and belongs
// to the same session, its task id, state and freshness timestamp are
// refreshed. If the entry is missing (push raced the optimistic insert, or the
// table was cleared in between) a new entry is created in the notified state.
// It returns true when the update created a new entry.
func (t *Table) Apply(u Update) bool {
	now := t.now()
	if existing, ok := t.tasks[u.SegmentIndex]; ok {
		if existing.SessionID != u.SessionID {
			slog.Debug("TaskTable: entry owned by different session, dropping update",
				"segment", u.SegmentIndex, "have", existing.SessionID, "got", u.SessionID)
			return false
		}
		existing.TaskID = u.TaskID
		existing.State = u.State
		existing.DurationMS = u.DurationMS
		existing.Error = u.Error
		existing.UpdatedAt = now
		return false
	}

	t.tasks[u.SegmentIndex] = &model.SegmentTask{
		SessionID:    u.SessionID,
		TaskID:       u.TaskID,
		SegmentIndex: u.SegmentIndex,
		State:        u.State,
		DurationMS:   u.DurationMS,
		Error:        u.Error,
		UpdatedAt:    now,
	}
	return true
}

// Get returns a copy of the task for the given segment index.
func (t *Table) Get(index int) (model.SegmentTask, bool) {
	task, ok := t.tasks[index]
	if !ok {
		return model.SegmentTask{}, false
	}
	return *task, true
}

// Has reports whether an entry exists for the index, in any state.
func (t *Table) Has(index int) bool {
	_, ok := t.tasks[index]
	return ok
}

// IsReady reports whether the segment's audio is ready to fetch.
func (t *Table) IsReady(index int) bool {
	task, ok := t.tasks[index]
	return ok && task.State == model.TaskReady
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.tasks)
}

// Clear drops all entries. Called on session end, seek and voice change.
func (t *Table) Clear() {
	t.tasks = make(map[int]*model.SegmentTask)
}

// PurgeStale removes entries still pending past the timeout (the submission
// presumably never reached the backend). Entries in any other state are kept
// regardless of age. Returns the number of removed entries.
func (t *Table) PurgeStale(timeout time.Duration) int {
	now := t.now()
	removed := 0
	for idx, task := range t.tasks {
		if task.State != model.TaskPending {
			continue
		}
		if now.Sub(task.UpdatedAt) > timeout {
			slog.Debug("TaskTable: purging stale pending task", "segment", idx, "age", now.Sub(task.UpdatedAt))
			delete(t.tasks, idx)
			removed++
		}
	}
	return removed
}

// TaskIDs returns the non-empty task ids of entries in non-terminal states,
// for the status-query fallback path.
func (t *Table) TaskIDs() []string {
	ids := make([]string, 0, len(t.tasks))
	for _, task := range t.tasks {
		if task.TaskID != "" && !task.State.Terminal() {
			ids = append(ids, task.TaskID)
		}
	}
	return ids
}

// Snapshot returns a copy of all entries keyed by segment index.
func (t *Table) Snapshot() map[int]model.SegmentTask {
	out := make(map[int]model.SegmentTask, len(t.tasks))
	for idx, task := range t.tasks {
		out[idx] = *task
	}
	return out
}
