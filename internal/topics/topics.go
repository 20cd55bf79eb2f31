// Package topics reads query topic files and normalizes them into free-text
// queries with the same placeholder and unwrapping rules applied to posts.
package topics

import (
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/markup"
)

// RawTopic is one topic element as found in the topic file. Title and
// Question hold the element markup exactly as recovered by the parser.
type RawTopic struct {
	Number   string
	Title    string
	Question string
	Tags     string
}

const (
	topicElement    = "topic"
	titleElement    = "title"
	questionElement = "question"
	tagsElement     = "tags"
	numberAttr      = "number"

	// mathDelimiter marks formulas in topic files only; the indexed corpus
	// never stored it.
	mathDelimiter = "$"
)

// Read parses every topic element of a topic file. The file is parsed
// tolerantly with p so that embedded post markup needs no escaping.
func Read(r io.Reader, p markup.Parser) ([]RawTopic, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	if p == nil {
		p = markup.NewHTMLParser()
	}

	tree := p.Parse(string(data))
	var out []RawTopic
	for _, el := range tree.Elements(topicElement) {
		number, ok := el.Attr(numberAttr)
		if !ok || number == "" {
			return nil, &domain.StructuralInputError{Kind: "topic", RecordID: fmt.Sprintf("#%d", len(out)+1), Field: numberAttr}
		}
		t := RawTopic{Number: number}

		title := el.Find(titleElement)
		if len(title) == 0 {
			return nil, &domain.StructuralInputError{Kind: "topic", RecordID: number, Field: titleElement}
		}
		t.Title = title[0].InnerMarkup()

		question := el.Find(questionElement)
		if len(question) == 0 {
			return nil, &domain.StructuralInputError{Kind: "topic", RecordID: number, Field: questionElement}
		}
		t.Question = question[0].InnerMarkup()

		if tags := el.Find(tagsElement); len(tags) > 0 {
			t.Tags = html.UnescapeString(tags[0].Text())
		}
		out = append(out, t)
	}
	return out, nil
}

// Builder converts raw topics into TopicRecords.
type Builder struct {
	normalizer *markup.Normalizer
	logger     *slog.Logger
}

// NewBuilder creates a Builder; a nil normalizer selects the default one.
func NewBuilder(n *markup.Normalizer) *Builder {
	if n == nil {
		n = markup.NewNormalizer()
	}
	return &Builder{normalizer: n, logger: slog.Default().With("component", "topics")}
}

// Build normalizes one topic.
func (b *Builder) Build(t RawTopic) domain.TopicRecord {
	title := b.normalizer.Normalize(stripDelimiters(t.Title))
	body := b.normalizer.Normalize(stripDelimiters(t.Question))

	return domain.TopicRecord{
		QID:   t.Number,
		Query: Query(title.Plain, body.Plain, t.Tags),
		Title: title.Text,
		Body:  body.Text,
		Tags:  t.Tags,
	}
}

// BuildAll normalizes topics in order.
func (b *Builder) BuildAll(raw []RawTopic) []domain.TopicRecord {
	out := make([]domain.TopicRecord, len(raw))
	for i, t := range raw {
		out[i] = b.Build(t)
	}
	b.logger.Debug("Topics normalized", "count", len(out))
	return out
}

// Query composes the single free-text query issued for a topic.
func Query(title, body, tags string) string {
	return "Title: " + title + " Question: " + body + " Tags: " + tags
}

// stripDelimiters unescapes the recovered markup and drops math delimiters.
func stripDelimiters(s string) string {
	return strings.ReplaceAll(html.UnescapeString(s), mathDelimiter, "")
}
