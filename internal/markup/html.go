package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLParser parses fragments with the HTML5 algorithm in a <body> context.
type HTMLParser struct{}

// NewHTMLParser creates a parser backed by golang.org/x/net/html.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse implements Parser.
func (HTMLParser) Parse(text string) Tree {
	root := &html.Node{Type: html.DocumentNode}
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	nodes, err := html.ParseFragment(strings.NewReader(text), context)
	if err != nil {
		// Reading from a string cannot fail; keep the input as character data.
		root.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		return &htmlTree{root: root}
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &htmlTree{root: root}
}

type htmlTree struct {
	root *html.Node
}

func (t *htmlTree) Elements(tag string) []Element {
	return elementsUnder(t.root, tag)
}

func (t *htmlTree) Unwrap(tags ...string) {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = true
	}
	for _, n := range findAll(t.root, set) {
		unwrap(n)
	}
}

func (t *htmlTree) Render() string {
	var sb strings.Builder
	renderChildren(&sb, t.root)
	return sb.String()
}

func (t *htmlTree) Text() string {
	var sb strings.Builder
	collectText(&sb, t.root)
	return sb.String()
}

type htmlElement struct {
	node *html.Node
}

func (e *htmlElement) Tag() string {
	return e.node.Data
}

func (e *htmlElement) SetTag(name string) {
	e.node.Data = strings.ToLower(name)
	e.node.DataAtom = atom.Lookup([]byte(e.node.Data))
}

func (e *htmlElement) Attr(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *htmlElement) RemoveAttr(name string) {
	name = strings.ToLower(name)
	kept := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	e.node.Attr = kept
}

func (e *htmlElement) Text() string {
	var sb strings.Builder
	collectText(&sb, e.node)
	return sb.String()
}

func (e *htmlElement) InnerMarkup() string {
	var sb strings.Builder
	renderChildren(&sb, e.node)
	return sb.String()
}

func (e *htmlElement) Find(tag string) []Element {
	return elementsUnder(e.node, tag)
}

func elementsUnder(n *html.Node, tag string) []Element {
	var out []Element
	for _, c := range findAll(n, map[string]bool{strings.ToLower(tag): true}) {
		out = append(out, &htmlElement{node: c})
	}
	return out
}

// findAll returns the element descendants of n whose tag is in tags, in
// document order.
func findAll(n *html.Node, tags map[string]bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && tags[c.Data] {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// unwrap moves the children of n in front of it and detaches n.
func unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

func collectText(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode, html.DocumentNode:
			collectText(sb, c)
		}
	}
}
