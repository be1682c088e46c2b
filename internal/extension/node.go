package extension

import (
	"encoding/json"
	"fmt"

	"github.com/mysangle/blitz/internal/engine"
	"github.com/mysangle/blitz/internal/host"
)

// KindDispatchEvent is the kind of DispatchEvent envelopes.
const KindDispatchEvent = "dom.event"

// DispatchEvent asks the engine goroutine to dispatch an event of Type to
// the listeners of Node. When Reply is non-nil it receives whether the
// default action is still allowed, that is whether no listener called
// preventDefault. Reply should be buffered.
type DispatchEvent struct {
	Node  int
	Type  string
	Reply chan<- bool
}

func (DispatchEvent) Kind() string { return KindDispatchEvent }

func (e DispatchEvent) String() string { return fmt.Sprintf("dispatch %q to node %d", e.Type, e.Node) }

const nodeJS = `(function() {
	var blitz = __blitz__;
	var listeners = {};

	function Node(handle) { this.handle = handle; }

	Node.prototype.getAttribute = function(name) {
		return JSON.parse(blitz.internal_get_attribute(this.handle, String(name)));
	};

	Node.prototype.addEventListener = function(type, listener) {
		var byType = listeners[this.handle] || (listeners[this.handle] = {});
		(byType[type] || (byType[type] = [])).push(listener);
	};

	Node.prototype.dispatchEvent = function(evt) {
		var list = (listeners[this.handle] && listeners[this.handle][evt.type]) || [];
		list = list.slice();
		for (var i = 0; i < list.length; i++) {
			list[i].call(this, evt);
		}
		return evt.do_default;
	};

	Object.defineProperty(Node.prototype, 'innerHTML', {
		set: function(html) {
			blitz.internal_inner_html_set(this.handle, String(html));
		}
	});

	function Event(type) {
		this.type = type;
		this.do_default = true;
	}

	Event.prototype.preventDefault = function() {
		this.do_default = false;
	};

	globalThis.Node = Node;
	globalThis.Event = Event;
})();`

// Node installs the Node and Event constructors and handles DispatchEvent
// envelopes. getAttribute returns null for a missing attribute.
func Node(st *host.State) Extension {
	getAttribute := func(node int, name string) (string, error) {
		if st.Handler == nil {
			return "", errNoDocument
		}
		v, ok := st.Handler.GetAttribute(node, name)
		if !ok {
			return "null", nil
		}
		out, err := json.Marshal(v)
		return string(out), err
	}
	setInnerHTML := func(node int, html string) (bool, error) {
		if st.Handler == nil {
			return false, errNoDocument
		}
		if err := st.Handler.SetInnerHTML(node, html); err != nil {
			return false, err
		}
		return true, nil
	}

	return Extension{
		Name: "node",
		Ops: []Op{
			{Name: "internal_get_attribute", Fn: getAttribute},
			{Name: "internal_inner_html_set", Fn: setInnerHTML},
		},
		Files: []string{nodeJS},
		Tasks: map[string]TaskHandler{
			KindDispatchEvent: func(ctx *engine.Context, task host.MacroTask) error {
				ev := task.(DispatchEvent)
				typ, err := json.Marshal(ev.Type)
				if err != nil {
					return err
				}
				js := fmt.Sprintf("String(new Node(%d).dispatchEvent(new Event(%s)))", ev.Node, typ)
				out, err := ctx.EvalString(js, ev.String())
				if err != nil {
					return err
				}
				if ev.Reply != nil {
					select {
					case ev.Reply <- out == "true":
					default:
						st.Log.WithField("node", ev.Node).Debug("node: dropped dispatch reply")
					}
				}
				return nil
			},
		},
	}
}
