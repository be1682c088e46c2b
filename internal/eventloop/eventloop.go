// Package eventloop runs the single authoritative loop of a runtime: it
// owns the engine context and the receiving side of the macro-task queue,
// and re-enters the engine strictly sequentially for every envelope.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/engine"
	"github.com/mysangle/blitz/internal/extension"
	"github.com/mysangle/blitz/internal/host"
	"github.com/mysangle/blitz/internal/metrics"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Loop is one engine plus its event loop. Run, Close and the accessors
// must be called from the goroutine that owns the loop; Post is safe from
// any goroutine.
type Loop struct {
	cfg      core.Config
	ctx      *engine.Context
	state    *host.State
	handlers map[string]extension.TaskHandler
	log      *logrus.Entry

	closeOnce sync.Once
	closeErr  error
}

// New creates the engine selected by cfg, wires the host state to it and
// loads the recommended extensions. handler answers the DOM-like host
// calls; it must not be nil.
func New(cfg core.Config, handler core.HostHandler) (*Loop, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if handler == nil {
		return nil, errors.New("eventloop: nil host handler")
	}

	rt, err := core.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	log := logrus.NewEntry(cfg.Logger).WithField("runtime_id", id)

	ectx, err := engine.New(rt, cfg.ExecutionTimeout, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	st := host.New(host.Options{
		ID:        id,
		Handler:   handler,
		Refs:      ectx,
		QueueSize: cfg.QueueSize,
		Log:       log,
	})

	l := &Loop{
		cfg:      cfg,
		ctx:      ectx,
		state:    st,
		handlers: make(map[string]extension.TaskHandler),
		log:      log,
	}

	for _, ext := range extension.Recommended(st, cfg) {
		if err := ext.Load(ectx); err != nil {
			l.Close()
			return nil, err
		}
		for kind, h := range ext.Tasks {
			if _, dup := l.handlers[kind]; dup {
				l.Close()
				return nil, fmt.Errorf("extension %s: duplicate handler for %q", ext.Name, kind)
			}
			l.handlers[kind] = h
		}
	}

	log.WithField("backend", cfg.Backend).Debug("eventloop: runtime ready")
	return l, nil
}

// Run evaluates source, named name in errors, then runs the loop. An
// uncaught exception in source is returned as *core.ScriptError without
// entering the loop. Run returns nil once no background work remains
// (unless Config.KeepAlive is set) or the loop is closed, ctx.Err() when
// ctx is done, and a fatal engine error such as core.ErrExecutionTimeout.
// The loop is closed when Run returns.
func (l *Loop) Run(ctx context.Context, source, name string) error {
	defer l.Close()

	if err := l.ctx.EvalScript(source, name); err != nil {
		return err
	}
	return l.loop(ctx)
}

func (l *Loop) loop(ctx context.Context) error {
	for {
		if !l.cfg.KeepAlive && l.drained() {
			l.log.Debug("eventloop: no pending work, exiting")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.state.Done():
			return nil
		case <-l.state.Idle():
		case task := <-l.state.Queue():
			if err := l.dispatch(task); err != nil {
				return err
			}
		}
	}
}

// drained reports that no work is in flight and no envelope is queued.
// In-flight work is only settled after its envelope is queued, so the
// order of the two checks matters.
func (l *Loop) drained() bool {
	return l.state.Tasks.InFlight() == 0 && len(l.state.Queue()) == 0
}

func (l *Loop) dispatch(task host.MacroTask) error {
	kind := task.Kind()
	metrics.Envelopes.WithLabelValues(kind).Inc()

	h, ok := l.handlers[kind]
	if !ok {
		l.cfg.Reporter.Report(fmt.Errorf("eventloop: no handler for macro task kind %q", kind))
		return nil
	}

	start := time.Now()
	err := h(l.ctx, task)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.CallbackDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrExecutionTimeout), errors.Is(err, core.ErrClosed):
		return err
	default:
		l.cfg.Reporter.Report(err)
		return nil
	}
}

// Post submits task from any goroutine. It blocks while the queue is full
// and returns core.ErrClosed once the loop is closed.
func (l *Loop) Post(task host.MacroTask) error {
	return l.state.Send(task)
}

// State returns the host state of the runtime.
func (l *Loop) State() *host.State { return l.state }

// Engine returns the engine context of the runtime.
func (l *Loop) Engine() *engine.Context { return l.ctx }

// Pending reports whether timers are pending or background work is in
// flight.
func (l *Loop) Pending() bool {
	return l.state.Timers.Len() > 0 || !l.drained()
}

// Close cancels all timers, waits for background work to stop and
// releases the engine. Further calls return the first result.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		l.state.Close()
		l.closeErr = l.ctx.Close()
		l.log.Debug("eventloop: closed")
	})
	return l.closeErr
}
