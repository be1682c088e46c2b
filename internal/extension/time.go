package extension

import (
	"errors"
	"fmt"
	"time"

	"github.com/mysangle/blitz/internal/engine"
	"github.com/mysangle/blitz/internal/host"
)

// maxDelayMs is the largest delay setTimeout honours; larger values are
// clamped to it.
const maxDelayMs = 2147483647

// timeJS validates arguments in script so argument errors surface as a
// catchable TypeError, retains the callback and hands its reference to the
// native op. A reference is released again if registration fails.
const timeJS = `(function() {
	var blitz = __blitz__;
	globalThis.setTimeout = function(callback, ms) {
		if (typeof callback !== 'function') {
			throw new TypeError('setTimeout: callback must be a function');
		}
		var delay = Number(ms);
		if (!isFinite(delay) || delay < 0) delay = 0;
		delay = Math.floor(Math.min(delay, 2147483647));
		var ref = blitz.retain(callback);
		try {
			return blitz.timer_register(ref, delay);
		} catch (e) {
			blitz.release(ref);
			throw e;
		}
	};
	globalThis.clearTimeout = function(id) {
		if (typeof id !== 'number' || !(id >= 1 && id <= 4294967295) || Math.floor(id) !== id) {
			return;
		}
		blitz.timer_clear(id);
	};
})();`

var errBadRef = errors.New("invalid callback reference")

// Time installs setTimeout and clearTimeout and handles the timer
// envelopes.
func Time(st *host.State) Extension {
	register := func(ref, ms int) (int, error) {
		if ref <= 0 {
			return 0, errBadRef
		}
		if ms < 0 {
			ms = 0
		} else if ms > maxDelayMs {
			ms = maxDelayMs
		}
		id := st.Timers.Register(time.Duration(ms)*time.Millisecond, st.Retain(ref))
		return int(id), nil
	}
	cancel := func(id int) {
		if id <= 0 || uint64(id) > uint64(^host.TimeoutID(0)) {
			return
		}
		st.Timers.CancelAndAbort(host.TimeoutID(id))
	}

	return Extension{
		Name: "time",
		Ops: []Op{
			{Name: "timer_register", Fn: register},
			{Name: "timer_clear", Fn: cancel},
		},
		Files: []string{timeJS},
		Tasks: map[string]TaskHandler{
			host.KindFireTimer: func(_ *engine.Context, task host.MacroTask) error {
				id := task.(host.FireTimer).ID
				if err := st.Timers.FireAndClear(id); err != nil {
					return fmt.Errorf("timer %d: %w", id, err)
				}
				return nil
			},
			host.KindCancelTimer: func(_ *engine.Context, task host.MacroTask) error {
				st.Timers.CancelAndAbort(task.(host.CancelTimer).ID)
				return nil
			},
		},
	}
}
