package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mna/mainer"
	"github.com/mysangle/blitz/internal/core"
)

const binName = "blitz"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Run scripts in an embedded JavaScript engine with setTimeout,
clearTimeout, console and a DOM-like document.

The <command> can be one of:
       run <script>              Evaluate the script, then run the event
                                 loop until no timer or background work
                                 remains. TypeScript and scripts using
                                 import/export are bundled first.
       check <script>...         Bundle each script and report syntax
                                 errors without running it.
       backends                  Print the available engine backends.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --log-level LEVEL         Log level (debug, info, warn, error),
                                 defaults to warn.
       --log-format FORMAT       Log format, text or json.

Valid flag options for the <run> command are:
       -e --engine NAME          Engine backend, defaults to %[2]s.
       --timeout DURATION        Maximum duration of each entry into the
                                 engine (e.g. 500ms), 0 to disable.
       --memory-limit MB         Engine memory limit in megabytes.
       --queue-size N            Capacity of the macro-task queue.
       --keep-alive              Keep running when no work remains, until
                                 interrupted.
       -d --document PATH        HTML file to expose as document.
       --print-document          Print the document after the run.
       --metrics-addr ADDR       Serve /metrics and /healthz on ADDR
                                 while the script runs.

Flags can also be set with %[3]sFLAG_NAME environment variables, e.g.
%[3]sENGINE=goja.
`, binName, core.DefaultBackend, strings.ToUpper(binName)+"_")
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	LogLevel  string `flag:"log-level" env:"LOG_LEVEL"`
	LogFormat string `flag:"log-format" env:"LOG_FORMAT"`

	Engine        string `flag:"e,engine" env:"ENGINE"`
	Timeout       string `flag:"timeout" env:"TIMEOUT"`
	MemoryLimit   int    `flag:"memory-limit" env:"MEMORY_LIMIT"`
	QueueSize     int    `flag:"queue-size" env:"QUEUE_SIZE"`
	KeepAlive     bool   `flag:"keep-alive" env:"KEEP_ALIVE"`
	Document      string `flag:"d,document" env:"DOCUMENT"`
	PrintDocument bool   `flag:"print-document"`
	MetricsAddr   string `flag:"metrics-addr" env:"METRICS_ADDR"`

	timeout time.Duration
	args    []string
	flags   map[string]bool
	cmdFn   func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

var runOnlyFlags = []string{
	"e", "engine", "timeout", "memory-limit", "queue-size", "keep-alive",
	"d", "document", "print-document", "metrics-addr",
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}

	switch cmdName {
	case "run":
		if len(c.args[1:]) != 1 {
			return errors.New("run: exactly one script must be provided")
		}
	case "check":
		if len(c.args[1:]) == 0 {
			return errors.New("check: at least one script must be provided")
		}
	}

	if cmdName != "run" {
		for _, name := range runOnlyFlags {
			if c.flags[name] {
				return fmt.Errorf("%s: invalid flag '%s'", cmdName, name)
			}
		}
	}

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		c.timeout = d
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	return c.config(mainer.Stdio{}).Validate()
}

// config builds the runtime configuration from the flags, writing script
// output to stdio.
func (c *Cmd) config(stdio mainer.Stdio) core.Config {
	level := c.LogLevel
	if level == "" {
		level = "warn"
	}
	cfg := core.Config{
		Backend:          c.Engine,
		ExecutionTimeout: c.timeout,
		MemoryLimitMB:    c.MemoryLimit,
		QueueSize:        c.QueueSize,
		KeepAlive:        c.KeepAlive,
		Stdout:           stdio.Stdout,
		Stderr:           stdio.Stderr,
	}
	if stdio.Stderr != nil {
		cfg.Logger = core.NewLogger(stdio.Stderr, level, c.LogFormat)
	}
	return cfg
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command takes care of printing its errors, just return with an error code
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a context, a mainer.Stdio and a slice
// of strings as input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
