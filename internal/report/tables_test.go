package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/qrels"
)

func TestClip(t *testing.T) {
	if got := clip("a  b\n c"); got != "a b c" {
		t.Errorf("clip = %q, want %q", got, "a b c")
	}
	long := strings.Repeat("é", 100)
	if got := clip(long); len([]rune(got)) != maxCell || !strings.HasSuffix(got, "...") {
		t.Errorf("clip(long) has %d runes", len([]rune(got)))
	}
}

func TestWriteIndexStats(t *testing.T) {
	var buf bytes.Buffer
	s := engine.Stats{Path: "indexes/x-post.bleve", Kind: engine.KindPost, DocCount: 42, Fields: []string{"docno", "title"},
		Manifest: engine.Manifest{Tokens: "Stopwords", Model: engine.ModelBM25}}
	if err := WriteIndexStats(&buf, s); err != nil {
		t.Fatalf("WriteIndexStats failed: %v", err)
	}
	for _, want := range []string{"Index post", "42", "docno, title", "BM25"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteLexicon(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLexicon(&buf, "text", []engine.Term{{Term: "matrix", Count: 3}, {Term: "root", Count: 1}}); err != nil {
		t.Fatalf("WriteLexicon failed: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "2 terms") || !strings.Contains(out, "matrix") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestWriteHits(t *testing.T) {
	var buf bytes.Buffer
	hits := []domain.ScoredHit{{DocNo: "f1", Score: 1.5, Rank: 0, Meta: map[string]string{domain.FieldPostNo: "10"}}}
	if err := WriteHits(&buf, "sqrt 2", hits, []string{domain.FieldPostNo}); err != nil {
		t.Fatalf("WriteHits failed: %v", err)
	}
	for _, want := range []string{"sqrt 2", "postno", "f1", "1.5000", "10"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteTopics(t *testing.T) {
	topics := []domain.TopicRecord{{QID: "A.1", Query: "Title: x Question: y Tags: z"}, {QID: "A.2", Query: "q"}}
	judgments := qrels.NewSet([]domain.JudgmentEntry{
		{QID: "A.1", DocNo: "1", Grade: 3},
		{QID: "A.1", DocNo: "2", Grade: 1},
	})

	var buf bytes.Buffer
	if err := WriteTopics(&buf, topics, judgments, 2); err != nil {
		t.Fatalf("WriteTopics failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2 topics, 2 judgments over 1 queries", "relevant", "A.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteTopics(&buf, topics, nil, 2); err != nil {
		t.Fatalf("WriteTopics failed: %v", err)
	}
	if strings.Contains(buf.String(), "judged") {
		t.Errorf("unexpected judgment columns:\n%s", buf.String())
	}
}
