package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned when work is submitted to a runtime that has
	// been shut down.
	ErrClosed = errors.New("runtime closed")

	// ErrUnknownTask is returned when a task id is not (or no longer) in
	// the task registry.
	ErrUnknownTask = errors.New("unknown task")

	// ErrExecutionTimeout is returned when the watchdog interrupted a
	// script. The engine is discarded afterwards.
	ErrExecutionTimeout = errors.New("script execution timed out")
)

// ScriptError is an uncaught exception raised while evaluating script
// code or invoking a callback.
type ScriptError struct {
	Source string // script name or callback description
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("uncaught exception in %s: %v", e.Source, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// InvariantError reports a broken internal invariant of the scheduler
// (double consumption, unknown envelope target, ...). It is raised with
// panic because continuing would corrupt engine state.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "internal consistency violation: " + e.Msg
}

// Invariantf panics with an *InvariantError.
func Invariantf(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// Reporter receives errors the event loop recovers from, such as uncaught
// exceptions thrown by timer callbacks.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// LogReporter writes reported errors to a logrus entry at error level.
type LogReporter struct {
	Log *logrus.Entry
}

func (r LogReporter) Report(err error) {
	var se *ScriptError
	if errors.As(err, &se) {
		r.Log.WithField("source", se.Source).WithError(se.Err).Error("uncaught script exception")
		return
	}
	r.Log.WithError(err).Error("event loop error")
}
