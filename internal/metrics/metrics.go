// Package metrics exposes Prometheus collectors for the macro-task
// scheduler and an HTTP handler that serves them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values for callback invocations.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// TasksSpawned counts background units of work started by the task registry.
	TasksSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blitz_tasks_spawned_total",
			Help: "Total number of background units of work spawned.",
		},
	)

	// TasksAborted counts units of work cancelled before they completed.
	TasksAborted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blitz_tasks_aborted_total",
			Help: "Total number of background units of work aborted before completion.",
		},
	)

	// TasksInFlight tracks units of work that have not yet completed or
	// been aborted, across all runtimes of the process.
	TasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blitz_tasks_in_flight",
			Help: "Number of background units of work currently in flight.",
		},
	)

	// Timers counts timer lifecycle events by event name.
	Timers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blitz_timers_total",
			Help: "Timer lifecycle events (registered, fired, cancelled, stale).",
		},
		[]string{"event"},
	)

	// Envelopes counts macro-task envelopes dispatched by the event loop.
	Envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blitz_envelopes_total",
			Help: "Total number of macro-task envelopes dispatched, by kind.",
		},
		[]string{"kind"},
	)

	// CallbackDuration observes how long re-entries into the engine take.
	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blitz_callback_duration_seconds",
			Help:    "Duration of callback invocations on the engine goroutine, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// Timer event label values.
const (
	TimerRegistered = "registered"
	TimerFired      = "fired"
	TimerCancelled  = "cancelled"
	TimerStale      = "stale"
)

func init() {
	prometheus.MustRegister(TasksSpawned)
	prometheus.MustRegister(TasksAborted)
	prometheus.MustRegister(TasksInFlight)
	prometheus.MustRegister(Timers)
	prometheus.MustRegister(Envelopes)
	prometheus.MustRegister(CallbackDuration)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup.
	for _, ev := range []string{TimerRegistered, TimerFired, TimerCancelled, TimerStale} {
		Timers.WithLabelValues(ev)
	}
	CallbackDuration.WithLabelValues(OutcomeOK)
	CallbackDuration.WithLabelValues(OutcomeError)
}
