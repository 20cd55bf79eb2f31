package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/qrels"
)

// maxCell bounds the width of free-text cells.
const maxCell = 80

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= maxCell {
		return s
	}
	return string([]rune(s)[:maxCell-3]) + "..."
}

func render(w io.Writer, title string, headers []string, rows [][]string) error {
	var b strings.Builder
	if title != "" {
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
	}
	b.WriteString(newTable(headers, rows).Render())
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteIndexStats renders the collection statistics of an index.
func WriteIndexStats(w io.Writer, s engine.Stats) error {
	rows := [][]string{
		{"path", s.Path},
		{"kind", s.Kind},
		{"documents", strconv.FormatUint(s.DocCount, 10)},
		{"fields", strings.Join(s.Fields, ", ")},
		{"tokens", s.Manifest.Tokens},
		{"model", string(s.Manifest.Model)},
		{"source", s.Manifest.Source},
	}
	if !s.Manifest.BuiltAt.IsZero() {
		rows = append(rows, []string{"built", s.Manifest.BuiltAt.Format("2006-01-02 15:04:05")})
	}
	return render(w, "Index "+s.Kind, []string{"property", "value"}, rows)
}

// WriteLexicon renders the terms of one field.
func WriteLexicon(w io.Writer, field string, terms []engine.Term) error {
	rows := make([][]string, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, []string{t.Term, strconv.FormatUint(t.Count, 10)})
	}
	return render(w, fmt.Sprintf("Lexicon: %s (%d terms)", field, len(terms)), []string{"term", "docs"}, rows)
}

// WriteHits renders a ranked list with the requested meta fields.
func WriteHits(w io.Writer, title string, hits []domain.ScoredHit, fields []string) error {
	headers := append([]string{"rank", "docno", "score"}, fields...)
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		row := []string{strconv.Itoa(h.Rank), h.DocNo, strconv.FormatFloat(h.Score, 'f', 4, 64)}
		for _, f := range fields {
			row = append(row, clip(h.Meta[f]))
		}
		rows = append(rows, row)
	}
	return render(w, title, headers, rows)
}

// WriteTopics renders normalized topics. With judgments, each topic also
// shows how many documents were assessed and how many are relevant at
// threshold.
func WriteTopics(w io.Writer, topics []domain.TopicRecord, judgments *qrels.Set, threshold int) error {
	headers := []string{"qid", "query"}
	var relevant *qrels.Set
	if judgments != nil {
		headers = append(headers, "judged", "relevant")
		relevant = judgments.Binarize(threshold)
	}

	rows := make([][]string, 0, len(topics))
	for _, t := range topics {
		row := []string{t.QID, clip(t.Query)}
		if judgments != nil {
			row = append(row, strconv.Itoa(judgments.Count(t.QID)), strconv.Itoa(relevant.Count(t.QID)))
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("%d topics", len(topics))
	if judgments != nil {
		title += fmt.Sprintf(", %d judgments over %d queries", judgments.Len(), len(judgments.QIDs()))
	}
	return render(w, title, headers, rows)
}
