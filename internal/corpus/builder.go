// Package corpus turns raw forum posts into the two aligned record streams
// indexed by the engine: posts and the formulas they contain.
package corpus

import (
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/markup"
)

// Mode selects which record stream a pass over the input emits.
type Mode int

const (
	// PostMode emits one PostRecord per raw post.
	PostMode Mode = iota
	// FormulaMode emits one FormulaRecord per captured formula.
	FormulaMode
)

func (m Mode) String() string {
	switch m {
	case PostMode:
		return "post"
	case FormulaMode:
		return "math"
	default:
		return "unknown"
	}
}

// Built is the full output for one raw post.
type Built struct {
	Post     domain.PostRecord
	Formulas []domain.FormulaRecord
}

// Builder normalizes raw posts into records. It is safe for concurrent use.
type Builder struct {
	normalizer *markup.Normalizer
}

// NewBuilder creates a Builder using the given normalizer, or the default one
// when n is nil.
func NewBuilder(n *markup.Normalizer) *Builder {
	if n == nil {
		n = markup.NewNormalizer()
	}
	return &Builder{normalizer: n}
}

// Build normalizes one raw post.
func (b *Builder) Build(raw domain.RawPost) (Built, error) {
	if err := validate(raw); err != nil {
		return Built{}, err
	}

	parentNo := domain.RootParent
	if raw.IsAnswer() {
		parentNo = raw.ParentID
	}

	title := b.normalizer.Normalize(raw.Title)
	body := b.normalizer.Normalize(raw.Body)

	all := make([]domain.Formula, 0, len(title.Formulas)+len(body.Formulas))
	all = append(all, title.Formulas...)
	all = append(all, body.Formulas...)

	seen := make(map[string]bool, len(all))
	for _, f := range all {
		if seen[f.ID] {
			return Built{}, &domain.StructuralInputError{Kind: "post", RecordID: raw.ID, Field: "formula id"}
		}
		seen[f.ID] = true
	}

	post := domain.PostRecord{
		DocNo:      raw.ID,
		Title:      title.Text,
		Text:       body.Text,
		Tags:       TagLabels(raw.Tags),
		FormulaIDs: make([]string, len(all)),
		ParentNo:   parentNo,
		Votes:      raw.Score,
	}

	formulas := make([]domain.FormulaRecord, len(all))
	for i, f := range all {
		post.FormulaIDs[i] = f.ID
		formulas[i] = domain.FormulaRecord{
			DocNo:    f.ID,
			Text:     f.Content,
			PostNo:   post.DocNo,
			ParentNo: parentNo,
		}
	}

	return Built{Post: post, Formulas: formulas}, nil
}

func validate(raw domain.RawPost) error {
	missing := func(field string) error {
		return &domain.StructuralInputError{Kind: "post", RecordID: raw.ID, Field: field}
	}
	switch {
	case !raw.HasID || raw.ID == "":
		return missing("id")
	case !raw.HasPostTypeID:
		return missing("posttypeid")
	case !raw.HasScore:
		return missing("score")
	case !raw.HasBody:
		return missing("body")
	case raw.IsAnswer() && raw.ParentID == "":
		return missing("parentid")
	}
	return nil
}

// TagLabels converts a "<tag-one><tag-two>" list into "tag one, tag two".
func TagLabels(tags string) string {
	parts := strings.FieldsFunc(tags, func(r rune) bool {
		return r == '<' || r == '>'
	})
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "-", " "))
		if p != "" {
			labels = append(labels, p)
		}
	}
	return strings.Join(labels, ", ")
}
