package extension

import (
	"fmt"
	"io"

	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/host"
)

const consoleJS = `(function() {
	var print = __blitz__.internal_print;
	function format(args) {
		var parts = [];
		for (var i = 0; i < args.length; i++) {
			var arg = args[i];
			if (typeof arg === 'string') {
				parts.push(arg);
				continue;
			}
			if (typeof arg === 'object' && arg !== null) {
				try {
					parts.push(JSON.stringify(arg));
					continue;
				} catch (e) {}
			}
			parts.push(String(arg));
		}
		return parts.join(' ');
	}
	var con = {};
	['log', 'info', 'debug', 'warn', 'error'].forEach(function(level) {
		con[level] = function() {
			print(level, format(arguments));
		};
	});
	globalThis.console = con;
})();`

// Console installs console.log, info and debug writing to cfg.Stdout, and
// console.warn and error writing to cfg.Stderr, one line per call.
func Console(st *host.State, cfg core.Config) Extension {
	write := func(level, msg string) {
		var w io.Writer = cfg.Stdout
		if level == "warn" || level == "error" {
			w = cfg.Stderr
		}
		if _, err := fmt.Fprintln(w, msg); err != nil {
			st.Log.WithError(err).WithField("level", level).Warn("console: write failed")
		}
	}

	return Extension{
		Name:  "console",
		Ops:   []Op{{Name: "internal_print", Fn: write}},
		Files: []string{consoleJS},
	}
}
