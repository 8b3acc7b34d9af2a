package engine

import (
	"log/slog"

	"github.com/netscane/rovel-desk/pkg/api"
	"github.com/netscane/rovel-desk/pkg/model"
	"github.com/netscane/rovel-desk/pkg/push"
	"github.com/netscane/rovel-desk/pkg/task"
)

// applyTaskFact is the single reconciliation path for task state, regardless
// of whether it arrived in a submission acknowledgement, a push notification
// or a status query. Session identity is the only staleness check: a fact for
// any other session id is discarded.
func (e *Engine) applyTaskFact(u task.Update) {
	if e.session == nil || u.SessionID != e.session.ID {
		e.trk.TrackDiscarded(trackerProvider)
		slog.Debug("Engine: discarding task fact for foreign session",
			"session", u.SessionID, "segment", u.SegmentIndex, "state", u.State)
		return
	}

	if inserted := e.table.Apply(u); inserted {
		// A push beat the optimistic insert (or the table was cleared while
		// the notification was in flight). The fact is for our session, so
		// keep it rather than lose a real state.
		slog.Warn("Engine: task fact for unknown segment, inserting",
			"segment", u.SegmentIndex, "state", u.State, "task", u.TaskID)
	}

	if u.State == model.TaskFailed {
		slog.Warn("Engine: segment synthesis failed",
			"segment", u.SegmentIndex, "task", u.TaskID, "error", u.Error)
		e.setError(u.Error)
	}

	e.startFetchIfReady()
}

func (e *Engine) handleAck(sessionID string, acks []api.TaskInfo) {
	for _, t := range acks {
		e.applyTaskFact(task.Update{
			SessionID:    sessionID,
			TaskID:       t.TaskID,
			SegmentIndex: t.SegmentIndex,
			State:        model.ParseTaskState(t.State),
		})
	}
}

func (e *Engine) handleStatus(sessionID string, statuses []api.TaskStatusInfo) {
	for _, t := range statuses {
		e.applyTaskFact(task.Update{
			SessionID:    sessionID,
			TaskID:       t.TaskID,
			SegmentIndex: t.SegmentIndex,
			State:        model.ParseTaskState(t.State),
			Error:        t.Error,
		})
	}
}

func (e *Engine) handlePushEvent(ev push.Event) {
	switch ev.Type {
	case push.TypeConnected:
		e.pushConnected = true
	case push.TypeDisconnected, push.TypeError:
		e.pushConnected = false
		if ev.Err != nil {
			slog.Warn("Engine: push channel error", "error", ev.Err)
		}
	case push.TypeTaskChanged:
		if ev.Task == nil {
			return
		}
		e.trk.TrackPushEvent(trackerProvider)
		e.applyTaskFact(task.Update{
			SessionID:    ev.Task.SessionID,
			TaskID:       ev.Task.TaskID,
			SegmentIndex: ev.Task.SegmentIndex,
			State:        model.ParseTaskState(ev.Task.State),
			DurationMS:   ev.Task.DurationMS,
			Error:        ev.Task.Error,
		})
	case push.TypeSessionClosed:
		if e.session == nil || ev.SessionID != e.session.ID {
			return
		}
		slog.Info("Engine: session closed by server", "session", ev.SessionID, "reason", ev.Reason)
		e.setError("session closed by server: " + ev.Reason)
		e.teardownSession(false)
	}
	e.publish()
}
