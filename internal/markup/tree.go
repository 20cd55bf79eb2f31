// Package markup normalizes HTML-bearing post and topic fields into index-ready
// text while capturing the formula placeholders they contain.
package markup

// Parser turns markup text into a mutable tree. Implementations must be
// tolerant: malformed input yields whatever tree the parser recovers, never
// an error.
type Parser interface {
	Parse(text string) Tree
}

// Tree is a parsed markup fragment.
type Tree interface {
	// Elements returns every element with the given tag name in document order.
	Elements(tag string) []Element

	// Unwrap removes every element with one of the given tag names, splicing
	// its children into the parent at the element's former position.
	Unwrap(tags ...string)

	// Render serializes the tree back to markup.
	Render() string

	// Text returns the concatenated character data of the tree.
	Text() string
}

// Element is a single element node of a Tree.
type Element interface {
	Tag() string
	SetTag(name string)
	Attr(name string) (string, bool)
	RemoveAttr(name string)

	// Text returns the element's rendered character data.
	Text() string

	// InnerMarkup serializes the element's children.
	InnerMarkup() string

	// Find returns the descendants with the given tag name in document order.
	Find(tag string) []Element
}
