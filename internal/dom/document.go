// Package dom is the DOM-like host handler backing document and Node in
// script: an HTML document parsed with golang.org/x/net/html whose element
// nodes are addressed by integer ids.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mysangle/blitz/internal/core"
	"golang.org/x/net/html"
)

// ErrUnknownNode is returned for ids that were never issued or whose
// element has been removed from the document.
var ErrUnknownNode = errors.New("unknown node")

// Document is an HTML document implementing core.HostHandler. Element
// ids are issued in document order starting at 1 and never reused;
// elements inserted by SetInnerHTML get fresh ids.
type Document struct {
	mu    sync.RWMutex
	root  *html.Node
	nodes map[int]*html.Node
	ids   map[*html.Node]int
	next  int
}

var _ core.HostHandler = (*Document)(nil)

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	d := &Document{
		root:  root,
		nodes: make(map[int]*html.Node),
		ids:   make(map[*html.Node]int),
	}
	d.index(root)
	return d, nil
}

// ParseString parses an HTML document from s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Empty returns a document holding only the implied html, head and body
// elements.
func Empty() *Document {
	d, err := ParseString("")
	if err != nil {
		// html.Parse only fails on read errors.
		panic(err)
	}
	return d
}

// QuerySelectorAll returns the ids of the elements matching selector, in
// document order.
func (d *Document) QuerySelectorAll(selector string) ([]int, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []int
	walk(d.root, func(n *html.Node) {
		if sel.Match(n) {
			out = append(out, d.ids[n])
		}
	})
	return out, nil
}

// GetAttribute returns the value of attribute name on node.
func (d *Document) GetAttribute(node int, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.nodes[node]
	if !ok {
		return "", false
	}
	return attr(n, name)
}

// SetInnerHTML replaces the children of node with fragment, parsed in the
// context of node.
func (d *Document) SetInnerHTML(node int, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[node]
	if !ok {
		return fmt.Errorf("node %d: %w", node, ErrUnknownNode)
	}
	children, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("node %d: parsing fragment: %w", node, err)
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		d.unindex(c)
		n.RemoveChild(c)
		c = next
	}
	for _, c := range children {
		n.AppendChild(c)
		d.index(c)
	}
	return nil
}

// Render writes the document as HTML to w.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, or the render error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return err.Error()
	}
	return buf.String()
}

// Node returns the element with the given id.
func (d *Document) Node(id int) (*html.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return n, ok
}

func (d *Document) index(root *html.Node) {
	walk(root, func(n *html.Node) {
		d.next++
		d.nodes[d.next] = n
		d.ids[n] = d.next
	})
}

func (d *Document) unindex(root *html.Node) {
	walk(root, func(n *html.Node) {
		delete(d.nodes, d.ids[n])
		delete(d.ids, n)
	})
}

// walk calls fn for every element in the subtree of root, in document
// order.
func walk(root *html.Node, fn func(*html.Node)) {
	if root.Type == html.ElementNode {
		fn(root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
