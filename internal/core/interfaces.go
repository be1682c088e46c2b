package core

// HostHandler is the DOM-like capability the embedding application exposes
// to scripts. Calls are synchronous and made on the engine goroutine, so
// implementations must not block for long.
type HostHandler interface {
	// QuerySelectorAll returns the ids of the nodes matching selector, in
	// document order.
	QuerySelectorAll(selector string) ([]int, error)

	// GetAttribute returns the value of attribute name on node, and
	// whether it is present.
	GetAttribute(node int, name string) (string, bool)

	// SetInnerHTML replaces the children of node with the parsed html.
	SetInnerHTML(node int, html string) error
}
