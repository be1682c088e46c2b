package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/metrics"
	"github.com/sirupsen/logrus"
)

// TaskID identifies one spawned background unit of work. Ids come from a
// single counter per registry and are never reused.
type TaskID uint64

// Work is a background unit of work. It runs on its own goroutine without
// access to the engine and returns the envelope to deliver to the engine
// goroutine, or nil when there is nothing to deliver. Work must return
// promptly once ctx is done.
type Work func(ctx context.Context) MacroTask

const (
	taskPending int32 = iota
	taskCompleted
	taskAborted
)

type task struct {
	cancel context.CancelFunc
	state  atomic.Int32
}

// TaskRegistry tracks every spawned unit of work by TaskID. Spawn, Abort
// and Forget are called from the engine goroutine; the spawned goroutines
// only touch the task state and the in-flight counter.
type TaskRegistry struct {
	ctx    context.Context
	send   func(MacroTask) error
	onIdle func()
	log    *logrus.Entry

	mu    sync.Mutex
	tasks map[TaskID]*task

	next     atomic.Uint64
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

func newTaskRegistry(ctx context.Context, send func(MacroTask) error, onIdle func(), log *logrus.Entry) *TaskRegistry {
	return &TaskRegistry{
		ctx:    ctx,
		send:   send,
		onIdle: onIdle,
		log:    log,
		tasks:  make(map[TaskID]*task),
	}
}

// Spawn starts work on a new goroutine and returns its id immediately.
// The in-flight counter is incremented until the work completes or is
// aborted. An aborted task never delivers its envelope.
func (r *TaskRegistry) Spawn(work Work) TaskID {
	id := TaskID(r.next.Add(1))
	ctx, cancel := context.WithCancel(r.ctx)
	t := &task{cancel: cancel}

	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()

	r.inFlight.Add(1)
	metrics.TasksSpawned.Inc()
	metrics.TasksInFlight.Inc()

	r.wg.Add(1)
	go r.run(ctx, id, t, work)
	return id
}

func (r *TaskRegistry) run(ctx context.Context, id TaskID, t *task, work Work) {
	defer r.wg.Done()
	defer t.cancel()

	env := work(ctx)

	// Commit before sending: once committed, Abort can no longer claim the
	// task and the envelope is guaranteed to be sent (or dropped at shutdown).
	if !t.state.CompareAndSwap(taskPending, taskCompleted) {
		return
	}
	if env != nil {
		if err := r.send(env); err != nil {
			r.log.WithField("task_id", id).WithError(err).Debug("tasks: dropped completion envelope")
		}
	}
	r.release()
}

// Abort removes id from the registry and cancels its work. preempted
// reports whether the work was stopped before it committed its envelope;
// when false the envelope is already on its way to the engine goroutine.
// Aborting an id that is not registered returns core.ErrUnknownTask.
func (r *TaskRegistry) Abort(id TaskID) (preempted bool, err error) {
	t, ok := r.remove(id)
	if !ok {
		return false, fmt.Errorf("abort task %d: %w", id, core.ErrUnknownTask)
	}

	// Claim the task before cancelling so the work cannot observe the
	// cancellation and commit first.
	preempted = t.state.CompareAndSwap(taskPending, taskAborted)
	t.cancel()
	if preempted {
		metrics.TasksAborted.Inc()
		r.release()
	}
	return preempted, nil
}

// Forget removes id without cancelling it, for work whose completion has
// been handled. Forgetting an id that is not registered returns
// core.ErrUnknownTask: it means the completion was handled twice.
func (r *TaskRegistry) Forget(id TaskID) error {
	t, ok := r.remove(id)
	if !ok {
		return fmt.Errorf("forget task %d: %w", id, core.ErrUnknownTask)
	}
	t.cancel()
	return nil
}

// InFlight returns the number of units of work that have neither
// completed nor been aborted.
func (r *TaskRegistry) InFlight() int64 {
	return r.inFlight.Load()
}

// Len returns the number of registry entries not yet reaped.
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// wait blocks until every spawned goroutine has returned.
func (r *TaskRegistry) wait() {
	r.wg.Wait()
}

func (r *TaskRegistry) remove(id TaskID) (*task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	return t, ok
}

func (r *TaskRegistry) release() {
	metrics.TasksInFlight.Dec()
	if r.inFlight.Add(-1) == 0 && r.onIdle != nil {
		r.onIdle()
	}
}
