package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrInvalidSelector is wrapped by every selector parse error.
var ErrInvalidSelector = errors.New("invalid selector")

// Simple is a compound of type, id, class and attribute conditions that a
// single element must all satisfy, for example div#main.active[href].
type Simple struct {
	Tag        string
	ID         string
	Classes    []string
	Attributes []AttrMatcher
}

// AttrMatcher is one [name], [name=value], [name*=value], [name^=value],
// [name$=value] or [name~=value] condition.
type AttrMatcher struct {
	Name  string
	Op    string // "" (exists), "=", "*=", "^=", "$=", "~="
	Value string
}

// Combinator relates two simple selectors of a complex selector.
type Combinator int

const (
	CombinatorNone            Combinator = iota
	CombinatorDescendant                 // "A B"
	CombinatorChild                      // "A > B"
	CombinatorAdjacentSibling            // "A + B"
	CombinatorGeneralSibling             // "A ~ B"
)

// Part is one simple selector of a complex selector and the combinator
// that links it to the next part, towards the subject.
type Part struct {
	Sel        *Simple
	Combinator Combinator
}

// Complex is a chain of simple selectors. Parts[len-1] is the subject.
type Complex struct {
	Parts []Part
}

// Selector is a comma separated selector list; an element matches when
// any of its complex selectors does.
type Selector []*Complex

// ParseSelector parses a selector list such as "ul > li.item, a[href^=http]".
func ParseSelector(s string) (Selector, error) {
	var list Selector
	for _, group := range splitGroups(s) {
		c, err := parseComplex(group)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, s, err)
		}
		list = append(list, c)
	}
	return list, nil
}

// Match reports whether the element n matches the selector.
func (s Selector) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, c := range s {
		if c.matchAt(len(c.Parts)-1, n) {
			return true
		}
	}
	return false
}

// matchAt matches part i against n and the parts left of it against n's
// ancestors or preceding siblings, backtracking over the candidates of
// descendant and general-sibling combinators.
func (c *Complex) matchAt(i int, n *html.Node) bool {
	if !c.Parts[i].Sel.Matches(n) {
		return false
	}
	if i == 0 {
		return true
	}

	switch c.Parts[i-1].Combinator {
	case CombinatorChild:
		p := parentElement(n)
		return p != nil && c.matchAt(i-1, p)
	case CombinatorDescendant:
		for p := parentElement(n); p != nil; p = parentElement(p) {
			if c.matchAt(i-1, p) {
				return true
			}
		}
	case CombinatorAdjacentSibling:
		s := prevElement(n)
		return s != nil && c.matchAt(i-1, s)
	case CombinatorGeneralSibling:
		for s := prevElement(n); s != nil; s = prevElement(s) {
			if c.matchAt(i-1, s) {
				return true
			}
		}
	}
	return false
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// splitGroups splits a selector list at commas outside attribute brackets
// and quotes.
func splitGroups(s string) []string {
	var (
		groups []string
		depth  int
		quote  byte
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			if depth > 0 {
				depth--
			}
		case ch == ',' && depth == 0:
			groups = append(groups, s[start:i])
			start = i + 1
		}
	}
	return append(groups, s[start:])
}

func parseComplex(s string) (*Complex, error) {
	tokens, err := tokenize(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty selector")
	}

	c := &Complex{}
	expectSel := true
	for _, tok := range tokens {
		comb := combinatorOf(tok)
		if expectSel {
			if comb != CombinatorNone {
				return nil, fmt.Errorf("unexpected combinator %q", tok)
			}
			sel, err := ParseSimple(tok)
			if err != nil {
				return nil, err
			}
			c.Parts = append(c.Parts, Part{Sel: sel})
			expectSel = false
			continue
		}
		if comb == CombinatorNone {
			return nil, fmt.Errorf("missing combinator before %q", tok)
		}
		c.Parts[len(c.Parts)-1].Combinator = comb
		expectSel = true
	}
	if expectSel {
		return nil, errors.New("selector ends with a combinator")
	}
	return c, nil
}

func combinatorOf(tok string) Combinator {
	switch tok {
	case " ":
		return CombinatorDescendant
	case ">":
		return CombinatorChild
	case "+":
		return CombinatorAdjacentSibling
	case "~":
		return CombinatorGeneralSibling
	}
	return CombinatorNone
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

// tokenize splits a complex selector into simple-selector tokens and
// combinator tokens (">", "+", "~", or " " for descendant).
func tokenize(s string) ([]string, error) {
	var tokens []string
	n := len(s)
	i := 0

	for i < n {
		ws := i
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}

		if s[i] == '>' || s[i] == '+' || s[i] == '~' {
			tokens = append(tokens, string(s[i]))
			i++
			continue
		}

		// Whitespace between two simple selectors is a descendant combinator.
		if i > ws && len(tokens) > 0 && combinatorOf(tokens[len(tokens)-1]) == CombinatorNone {
			tokens = append(tokens, " ")
		}

		start := i
		for i < n && !isSpace(s[i]) && s[i] != '>' && s[i] != '+' && s[i] != '~' {
			if s[i] != '[' {
				i++
				continue
			}
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, errors.New("unterminated attribute selector")
			}
			i += end + 1
		}
		tokens = append(tokens, s[start:i])
	}
	return tokens, nil
}

// ParseSimple parses a simple selector such as "div", "#id", ".class",
// "[href]", "div.class#id[data-x=foo]" or "*".
func ParseSimple(s string) (*Simple, error) {
	sel := &Simple{}
	n := len(s)
	i := 0

	for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' {
		i++
	}
	sel.Tag = s[:i]

	for i < n {
		switch s[i] {
		case '#', '.':
			kind := s[i]
			i++
			start := i
			for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' {
				i++
			}
			name := s[start:i]
			if name == "" {
				return nil, fmt.Errorf("empty name after %q", kind)
			}
			if kind == '#' {
				sel.ID = name
			} else {
				sel.Classes = append(sel.Classes, name)
			}

		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, errors.New("unterminated attribute selector")
			}
			am := parseAttrMatcher(s[i+1 : i+end])
			if am.Name == "" {
				return nil, errors.New("empty attribute name")
			}
			sel.Attributes = append(sel.Attributes, am)
			i += end + 1

		default:
			return nil, fmt.Errorf("unexpected %q", s[i])
		}
	}
	return sel, nil
}

func parseAttrMatcher(s string) AttrMatcher {
	for _, op := range []string{"*=", "^=", "$=", "~=", "="} {
		if idx := strings.Index(s, op); idx != -1 {
			value := strings.TrimSpace(s[idx+len(op):])
			return AttrMatcher{
				Name:  strings.ToLower(strings.TrimSpace(s[:idx])),
				Op:    op,
				Value: strings.Trim(value, `"'`),
			}
		}
	}
	return AttrMatcher{Name: strings.ToLower(strings.TrimSpace(s))}
}

// Matches reports whether the element n satisfies every condition of sel.
func (sel *Simple) Matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.Tag != "" && sel.Tag != "*" && !strings.EqualFold(sel.Tag, n.Data) {
		return false
	}
	if sel.ID != "" {
		if id, _ := attr(n, "id"); id != sel.ID {
			return false
		}
	}
	if len(sel.Classes) > 0 {
		class, _ := attr(n, "class")
		if !containsAll(strings.Fields(class), sel.Classes) {
			return false
		}
	}

	for _, am := range sel.Attributes {
		val, ok := attr(n, am.Name)
		if !ok {
			return false
		}
		switch am.Op {
		case "=":
			ok = val == am.Value
		case "*=":
			ok = strings.Contains(val, am.Value)
		case "^=":
			ok = strings.HasPrefix(val, am.Value)
		case "$=":
			ok = strings.HasSuffix(val, am.Value)
		case "~=":
			ok = containsAll(strings.Fields(val), []string{am.Value})
		}
		if !ok {
			return false
		}
	}
	return true
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
