package markup

import (
	"golang.org/x/net/html"

	"github.com/sha1n/mathfuse/internal/domain"
)

const (
	// PlaceholderTag is the element that carries an inline formula.
	PlaceholderTag = "span"

	// MathTag is the canonical tag formulas are rewritten to.
	MathTag = "math"

	attrID    = "id"
	attrClass = "class"
)

// WrapperTags are removed by unwrapping before serialization.
var WrapperTags = []string{"p", "a", "body", "html"}

// Result is the normalized form of one field.
type Result struct {
	// Text is the canonical markup with formula ids removed.
	Text string

	// Annotated is the canonical markup with formula ids retained.
	Annotated string

	// Plain is the character data of the canonical tree, without any tags.
	Plain string

	// Formulas lists the captured placeholders in document order.
	Formulas []domain.Formula
}

// FormulaIDs returns the ids of the captured formulas in order.
func (r Result) FormulaIDs() []string {
	ids := make([]string, len(r.Formulas))
	for i, f := range r.Formulas {
		ids[i] = f.ID
	}
	return ids
}

// Normalizer rewrites formula placeholders and strips structural wrappers.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	parser  Parser
	wrapper []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithParser replaces the default HTML parser.
func WithParser(p Parser) Option {
	return func(n *Normalizer) {
		n.parser = p
	}
}

// WithWrapperTags replaces the set of unwrapped tags.
func WithWrapperTags(tags ...string) Option {
	return func(n *Normalizer) {
		n.wrapper = append([]string(nil), tags...)
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		parser:  NewHTMLParser(),
		wrapper: WrapperTags,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one field to its canonical form. An empty field yields
// empty text and no formulas.
func (n *Normalizer) Normalize(field string) Result {
	if field == "" {
		return Result{}
	}

	tree := n.parser.Parse(html.UnescapeString(field))

	var formulas []domain.Formula
	var placeholders []Element
	for _, el := range tree.Elements(PlaceholderTag) {
		id, ok := el.Attr(attrID)
		if !ok {
			continue
		}
		formulas = append(formulas, domain.Formula{ID: id, Content: el.Text()})
		el.SetTag(MathTag)
		el.RemoveAttr(attrClass)
		placeholders = append(placeholders, el)
	}

	tree.Unwrap(n.wrapper...)
	annotated := tree.Render()

	for _, el := range placeholders {
		el.RemoveAttr(attrID)
	}

	return Result{
		Text:      tree.Render(),
		Annotated: annotated,
		Plain:     tree.Text(),
		Formulas:  formulas,
	}
}
