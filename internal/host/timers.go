package host

import (
	"context"
	"time"

	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/metrics"
	"github.com/sirupsen/logrus"
)

// TimeoutID identifies a registered timer. It is independent from the
// TaskID of the work backing the timer. Zero is never issued.
type TimeoutID uint32

// Timeout is the record of a pending timer. It exclusively owns Callback
// until the record is consumed by firing or cancellation.
type Timeout struct {
	Duration time.Duration
	Callback *Global
	Task     TaskID
}

// TimerStore maps timer ids to pending timers. It must only be used from
// the engine goroutine: the presence of a record is what decides whether
// a fire or a cancel consumes it, so no lock guards it.
type TimerStore struct {
	tasks *TaskRegistry
	log   *logrus.Entry

	next    TimeoutID
	pending map[TimeoutID]*Timeout

	// stale holds timers cancelled after their fire envelope was already
	// committed; the envelope still arrives and must be ignored.
	stale map[TimeoutID]struct{}
}

func newTimerStore(tasks *TaskRegistry, log *logrus.Entry) *TimerStore {
	return &TimerStore{
		tasks:   tasks,
		log:     log,
		pending: make(map[TimeoutID]*Timeout),
		stale:   make(map[TimeoutID]struct{}),
	}
}

// Register stores a timer owning cb and spawns the work that sends a
// FireTimer envelope once d has elapsed. Negative durations count as 0.
func (s *TimerStore) Register(d time.Duration, cb *Global) TimeoutID {
	if d < 0 {
		d = 0
	}
	id := s.nextID()

	task := s.tasks.Spawn(func(ctx context.Context) MacroTask {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return FireTimer{ID: id}
		case <-ctx.Done():
			return nil
		}
	})

	// The fire envelope cannot be processed before this returns: both run
	// on the engine goroutine.
	s.pending[id] = &Timeout{Duration: d, Callback: cb, Task: task}

	metrics.Timers.WithLabelValues(metrics.TimerRegistered).Inc()
	s.log.WithFields(logrus.Fields{"timeout_id": id, "task_id": task, "delay": d}).Debug("timers: registered")
	return id
}

// FireAndClear consumes the record of id, invokes its callback with no
// arguments and releases the callback. The returned error is the
// callback's uncaught exception, if any. An envelope for a timer
// cancelled during the race window is ignored; any other missing record
// is an invariant violation.
func (s *TimerStore) FireAndClear(id TimeoutID) error {
	rec, ok := s.pending[id]
	if !ok {
		if _, stale := s.stale[id]; stale {
			delete(s.stale, id)
			metrics.Timers.WithLabelValues(metrics.TimerStale).Inc()
			s.log.WithField("timeout_id", id).Debug("timers: ignored fire of cancelled timer")
			return nil
		}
		core.Invariantf("fire envelope for timer %d without a pending record", id)
	}
	delete(s.pending, id)

	if err := s.tasks.Forget(rec.Task); err != nil {
		core.Invariantf("timer %d: %v", id, err)
	}

	metrics.Timers.WithLabelValues(metrics.TimerFired).Inc()
	s.log.WithField("timeout_id", id).Debug("timers: firing")

	err := rec.Callback.Call()
	if rerr := rec.Callback.Release(); rerr != nil {
		s.log.WithField("timeout_id", id).WithError(rerr).Warn("timers: releasing callback")
	}
	return err
}

// CancelAndAbort consumes the record of id without invoking its callback.
// Unknown, fired and already cancelled ids are ignored.
func (s *TimerStore) CancelAndAbort(id TimeoutID) {
	rec, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)

	preempted, err := s.tasks.Abort(rec.Task)
	if err != nil {
		core.Invariantf("timer %d: %v", id, err)
	}
	if !preempted {
		s.stale[id] = struct{}{}
	}

	metrics.Timers.WithLabelValues(metrics.TimerCancelled).Inc()
	s.log.WithFields(logrus.Fields{"timeout_id": id, "preempted": preempted}).Debug("timers: cancelled")

	if err := rec.Callback.Release(); err != nil {
		s.log.WithField("timeout_id", id).WithError(err).Warn("timers: releasing callback")
	}
}

// CancelAll cancels every pending timer. Used when the loop shuts down so
// no callback reference outlives it.
func (s *TimerStore) CancelAll() {
	for id := range s.pending {
		s.CancelAndAbort(id)
	}
}

// Len returns the number of pending timers.
func (s *TimerStore) Len() int { return len(s.pending) }

// Pending reports whether id has a live record.
func (s *TimerStore) Pending(id TimeoutID) bool {
	_, ok := s.pending[id]
	return ok
}

func (s *TimerStore) nextID() TimeoutID {
	for {
		s.next++
		if s.next == 0 {
			continue
		}
		_, live := s.pending[s.next]
		_, stale := s.stale[s.next]
		if !live && !stale {
			return s.next
		}
	}
}
