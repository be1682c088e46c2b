package extension

import (
	"encoding/json"
	"errors"

	"github.com/mysangle/blitz/internal/host"
)

const documentJS = `(function() {
	var blitz = __blitz__;
	globalThis.document = {
		querySelectorAll: function(selector) {
			var handles = JSON.parse(blitz.internal_query_selector_all(String(selector)));
			return handles.map(function(h) { return new Node(h); });
		}
	};
})();`

var errNoDocument = errors.New("no document attached")

// Document installs document.querySelectorAll backed by the host handler.
func Document(st *host.State) Extension {
	query := func(selector string) (string, error) {
		if st.Handler == nil {
			return "", errNoDocument
		}
		ids, err := st.Handler.QuerySelectorAll(selector)
		if err != nil {
			return "", err
		}
		if ids == nil {
			ids = []int{}
		}
		out, err := json.Marshal(ids)
		return string(out), err
	}

	return Extension{
		Name:  "document",
		Ops:   []Op{{Name: "internal_query_selector_all", Fn: query}},
		Files: []string{documentJS},
	}
}
