package host

import (
	"context"
	"sync"

	"github.com/mysangle/blitz/internal/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Options configures a State.
type Options struct {
	ID        string // runtime id, a new ULID when empty
	Handler   core.HostHandler
	Refs      Refs // engine-side reference table backing Globals
	QueueSize int
	Log       *logrus.Entry
}

// State is the per-runtime host state shared by the engine goroutine and
// the background goroutines. The engine goroutine owns the timers and the
// receiving side of the queue; background work only sends envelopes and
// settles its registry entry.
type State struct {
	ID      string // unique runtime id, attached to every log line
	Handler core.HostHandler
	Tasks   *TaskRegistry
	Timers  *TimerStore
	Log     *logrus.Entry

	refs  Refs
	queue chan MacroTask
	done  chan struct{}
	idle  chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates the host state for one runtime.
func New(opts Options) *State {
	if opts.QueueSize <= 0 {
		opts.QueueSize = core.DefaultQueueSize
	}
	if opts.ID == "" {
		opts.ID = ulid.Make().String()
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &State{
		ID:      opts.ID,
		Handler: opts.Handler,
		Log:     opts.Log.WithField("runtime_id", opts.ID),
		refs:    opts.Refs,
		queue:   make(chan MacroTask, opts.QueueSize),
		done:    make(chan struct{}),
		idle:    make(chan struct{}, 1),
		cancel:  cancel,
	}
	st.Tasks = newTaskRegistry(ctx, st.Send, st.notifyIdle, st.Log)
	st.Timers = newTimerStore(st.Tasks, st.Log)
	return st
}

// Send delivers t to the engine goroutine. It blocks while the queue is
// full and returns core.ErrClosed once the state is closed. Safe for
// concurrent use.
func (s *State) Send(t MacroTask) error {
	select {
	case <-s.done:
		return core.ErrClosed
	default:
	}
	select {
	case s.queue <- t:
		return nil
	case <-s.done:
		return core.ErrClosed
	}
}

// Queue is the receiving side of the envelope channel.
func (s *State) Queue() <-chan MacroTask { return s.queue }

// Done is closed when the state is closed.
func (s *State) Done() <-chan struct{} { return s.done }

// Idle receives a value each time the in-flight counter drops to zero.
func (s *State) Idle() <-chan struct{} { return s.idle }

// Retain wraps an engine reference number into an owned Global.
func (s *State) Retain(ref int) *Global {
	return NewGlobal(s.refs, ref)
}

// Close cancels every pending timer, stops all background work and waits
// for it to return. It must be called on the engine goroutine, before the
// engine itself is closed. Further calls are no-ops.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		s.Timers.CancelAll()
		close(s.done)
		s.cancel()
		s.Tasks.wait()
		s.Log.Debug("host: closed")
	})
}

func (s *State) notifyIdle() {
	select {
	case s.idle <- struct{}{}:
	default:
	}
}
