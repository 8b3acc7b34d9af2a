package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netscane/rovel-desk/pkg/model"
)

// fixedClock lets tests advance table time deterministically.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTable() (*Table, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	tbl := NewTable()
	tbl.now = clock.now
	return tbl, clock
}

func TestInsertPending_Idempotent(t *testing.T) {
	tbl, clock := newTestTable()

	tbl.InsertPending("sess-1", []int{0, 1, 2})
	assert.Equal(t, 3, tbl.Len())

	first, ok := tbl.Get(1)
	assert.True(t, ok)
	assert.Equal(t, model.TaskPending, first.State)
	assert.Equal(t, "sess-1", first.SessionID)

	// Second insert with overlapping indices must not touch existing entries.
	clock.advance(10 * time.Second)
	tbl.InsertPending("sess-1", []int{1, 2, 3})
	assert.Equal(t, 4, tbl.Len())

	again, _ := tbl.Get(1)
	assert.Equal(t, first.UpdatedAt, again.UpdatedAt, "timestamp must not refresh on re-insert")

	fresh, _ := tbl.Get(3)
	assert.Equal(t, clock.t, fresh.UpdatedAt)
}

func TestApply_UpdatesExisting(t *testing.T) {
	tbl, clock := newTestTable()
	tbl.InsertPending("sess-1", []int{0, 1})

	clock.advance(2 * time.Second)
	inserted := tbl.Apply(Update{
		SessionID:    "sess-1",
		TaskID:       "task-abc",
		SegmentIndex: 1,
		State:        model.TaskReady,
		DurationMS:   4200,
	})
	assert.False(t, inserted)

	got, ok := tbl.Get(1)
	assert.True(t, ok)
	assert.Equal(t, model.TaskReady, got.State)
	assert.Equal(t, "task-abc", got.TaskID)
	assert.Equal(t, 4200, got.DurationMS)
	assert.Equal(t, clock.t, got.UpdatedAt)
	assert.True(t, tbl.IsReady(1))

	// Unrelated entry untouched.
	other, _ := tbl.Get(0)
	assert.Equal(t, model.TaskPending, other.State)
}

func TestApply_MissingEntryInserted(t *testing.T) {
	tbl, _ := newTestTable()

	// Push arrived before the optimistic insert: accept it anyway.
	inserted := tbl.Apply(Update{
		SessionID:    "sess-1",
		TaskID:       "task-x",
		SegmentIndex: 7,
		State:        model.TaskInferring,
	})
	assert.True(t, inserted)

	got, ok := tbl.Get(7)
	assert.True(t, ok)
	assert.Equal(t, model.TaskInferring, got.State)
}

func TestApply_ForeignSessionEntryUntouched(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.InsertPending("sess-1", []int{4})

	tbl.Apply(Update{
		SessionID:    "sess-2",
		TaskID:       "task-y",
		SegmentIndex: 4,
		State:        model.TaskReady,
	})

	got, _ := tbl.Get(4)
	assert.Equal(t, model.TaskPending, got.State)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Empty(t, got.TaskID)
}

func TestPurgeStale(t *testing.T) {
	tbl, clock := newTestTable()
	tbl.InsertPending("sess-1", []int{0, 1, 2})

	tbl.Apply(Update{SessionID: "sess-1", TaskID: "t1", SegmentIndex: 1, State: model.TaskReady})
	tbl.Apply(Update{SessionID: "sess-1", TaskID: "t2", SegmentIndex: 2, State: model.TaskFailed, Error: "synthesis exploded"})

	clock.advance(31 * time.Second)
	removed := tbl.PurgeStale(30 * time.Second)
	assert.Equal(t, 1, removed)

	// Only the pending entry is gone; terminal entries survive any age.
	assert.False(t, tbl.Has(0))
	assert.True(t, tbl.IsReady(1))
	failed, _ := tbl.Get(2)
	assert.Equal(t, model.TaskFailed, failed.State)

	// Fresh pending entries stay.
	tbl.InsertPending("sess-1", []int{5})
	assert.Equal(t, 0, tbl.PurgeStale(30*time.Second))
	assert.True(t, tbl.Has(5))
}

func TestClear(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.InsertPending("sess-1", []int{0, 1, 2, 3})
	assert.Equal(t, 4, tbl.Len())

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	assert.False(t, tbl.Has(0))
}

func TestTaskIDs(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.InsertPending("sess-1", []int{0, 1, 2})

	// Pending without task id: not queryable.
	assert.Empty(t, tbl.TaskIDs())

	tbl.Apply(Update{SessionID: "sess-1", TaskID: "t0", SegmentIndex: 0, State: model.TaskInferring})
	tbl.Apply(Update{SessionID: "sess-1", TaskID: "t1", SegmentIndex: 1, State: model.TaskReady})

	ids := tbl.TaskIDs()
	assert.Equal(t, []string{"t0"}, ids, "only non-terminal tasks with ids are queried")
}

func TestSnapshot_IsCopy(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.InsertPending("sess-1", []int{0})

	snap := tbl.Snapshot()
	entry := snap[0]
	entry.State = model.TaskReady
	snap[0] = entry

	got, _ := tbl.Get(0)
	assert.Equal(t, model.TaskPending, got.State)
}
