package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the capacity of the macro-task queue when
// Config.QueueSize is zero.
const DefaultQueueSize = 256

// Config holds runtime configuration for one engine and its event loop.
type Config struct {
	Backend          string        // engine backend name, DefaultBackend when empty
	ExecutionTimeout time.Duration // max time per entry into the engine, 0 disables the watchdog
	MemoryLimitMB    int           // per-engine memory limit, 0 for no limit (ignored by goja)
	QueueSize        int           // capacity of the macro-task queue
	KeepAlive        bool          // keep running when no background work remains

	Stdout io.Writer // console.log/info/debug output
	Stderr io.Writer // console.warn/error output

	Logger   *logrus.Logger
	Reporter Reporter // uncaught script errors, defaults to a logrus reporter
}

// WithDefaults returns a copy of cfg with zero fields replaced by defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(cfg.Stderr, "info", "text")
	}
	if cfg.Reporter == nil {
		cfg.Reporter = LogReporter{Log: logrus.NewEntry(cfg.Logger)}
	}
	return cfg
}

// Validate reports configuration values that can never work.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.ExecutionTimeout < 0 {
		errs = append(errs, fmt.Errorf("execution timeout must not be negative: %v", cfg.ExecutionTimeout))
	}
	if cfg.MemoryLimitMB < 0 {
		errs = append(errs, fmt.Errorf("memory limit must not be negative: %d", cfg.MemoryLimitMB))
	}
	if cfg.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must not be negative: %d", cfg.QueueSize))
	}
	return errors.Join(errs...)
}

// NewLogger creates a logrus logger writing to w. level is a logrus level
// name (unknown names fall back to info); format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
