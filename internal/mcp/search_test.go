package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
)

type fakeEngine struct {
	hits []domain.ScoredHit
	err  error
	last engine.SearchRequest
}

func (f *fakeEngine) Search(_ context.Context, req engine.SearchRequest) ([]domain.ScoredHit, error) {
	f.last = req
	return f.hits, f.err
}

type fakeStore map[string]map[string]string

func (f fakeStore) Lookup(_ context.Context, docNo string, _ []string) (map[string]string, error) {
	fields, ok := f[docNo]
	if !ok {
		return nil, &domain.EngineError{Engine: "post", Op: "lookup", Err: errors.New("document not found")}
	}
	return fields, nil
}

func newSearch() (*Search, *fakeEngine) {
	maths := &fakeEngine{hits: []domain.ScoredHit{
		{QID: "mcp", DocNo: "f1", Score: 4, Rank: 0, Meta: map[string]string{domain.FieldPostNo: "2"}},
		{QID: "mcp", DocNo: "f2", Score: 3, Rank: 1, Meta: map[string]string{domain.FieldPostNo: "2"}},
	}}
	return &Search{
		Posts: &fakeEngine{hits: []domain.ScoredHit{
			{QID: "mcp", DocNo: "1", Score: 3, Rank: 0},
			{QID: "mcp", DocNo: "2", Score: 1, Rank: 1},
		}},
		Math: maths,
		Store: fakeStore{
			"1": {domain.FieldTitle: "Limits of sequences", domain.FieldTags: "calculus", domain.FieldParentNo: "root", domain.FieldText: "What is the limit?"},
			"2": {domain.FieldParentNo: "1", domain.FieldVotes: "7", domain.FieldText: "Use <math>x^2</math>."},
		},
		PostWeight: 1,
		MathWeight: 1,
		Model:      engine.ModelBM25,
		Depth:      100,
	}, maths
}

func resultText(r *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestSearch_Query(t *testing.T) {
	s, maths := newSearch()
	posts, err := s.Query(context.Background(), "limit x^2", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// post 2: 1 + 4 (best formula only), post 1: 3
	if len(posts) != 2 || posts[0].DocNo != "2" || posts[0].Score != 5 {
		t.Fatalf("posts = %+v", posts)
	}
	if posts[0].Votes != "7" || posts[1].Title != "Limits of sequences" {
		t.Errorf("display fields not loaded: %+v", posts)
	}
	if len(maths.last.Fields) != 1 || maths.last.Fields[0] != domain.FieldPostNo {
		t.Errorf("math request fields = %v, want postno", maths.last.Fields)
	}
}

func TestSearch_QueryPostsOnly(t *testing.T) {
	s, _ := newSearch()
	s.Math = nil
	posts, err := s.Query(context.Background(), "limit", 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(posts) != 1 || posts[0].DocNo != "1" {
		t.Errorf("posts = %+v, want only post 1", posts)
	}
}

func TestSearch_EngineError(t *testing.T) {
	s, maths := newSearch()
	maths.err = &domain.EngineError{Engine: "math", Op: "search", Err: errors.New("closed")}
	if _, err := s.Query(context.Background(), "x", 10); !errors.Is(err, domain.ErrExternalEngine) {
		t.Errorf("error = %v, want ErrExternalEngine", err)
	}
}

func TestCreateServer(t *testing.T) {
	s, _ := newSearch()
	if server := CreateServer(ServerConfig{Name: "mathfuse", Version: "1.0.0", Search: s}); server == nil {
		t.Fatal("Expected server to be created")
	}
	if server := CreateServer(ServerConfig{}); server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	s, _ := newSearch()
	result, _, err := NewSearchHandler(s, 0).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "  "})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result for empty query")
	}
}

func TestSearchHandler_Results(t *testing.T) {
	s, _ := newSearch()
	result, _, err := NewSearchHandler(s, 20).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "limit"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", resultText(result))
	}

	text := resultText(result)
	for _, want := range []string{"Found 2 posts", "[2] (answer to 1)", "**Votes**: 7", "[1] Limits of sequences", "**Tags**: calculus"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestSearchHandler_Limit(t *testing.T) {
	s, _ := newSearch()
	result, _, _ := NewSearchHandler(s, 20).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "limit", Limit: 1})
	if text := resultText(result); !strings.Contains(text, "Found 1 posts") {
		t.Errorf("Expected one post, got:\n%s", text)
	}
}

func TestSearchHandler_NoResults(t *testing.T) {
	s := &Search{Posts: &fakeEngine{}, Store: fakeStore{}}
	result, _, _ := NewSearchHandler(s, 5).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "nothing"})
	if result.IsError || !strings.Contains(resultText(result), "No results found") {
		t.Errorf("unexpected result: %s", resultText(result))
	}
}

func TestSearchHandler_SearchFailure(t *testing.T) {
	s := &Search{Posts: &fakeEngine{err: errors.New("index closed")}, Store: fakeStore{}}
	result, _, err := NewSearchHandler(s, 5).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "x"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(result), "index closed") {
		t.Errorf("unexpected result: %s", resultText(result))
	}
}

func TestReadHandler(t *testing.T) {
	s, _ := newSearch()
	h := NewReadHandler(s)

	result, _, err := h.Handle(context.Background(), &mcp.CallToolRequest{}, ReadArgument{DocNo: "2"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	text := resultText(result)
	if !strings.Contains(text, "**Answer to**: 1") || !strings.Contains(text, "Use <math>x^2</math>.") {
		t.Errorf("unexpected post text:\n%s", text)
	}

	result, _, _ = h.Handle(context.Background(), &mcp.CallToolRequest{}, ReadArgument{DocNo: "1"})
	if text := resultText(result); !strings.HasPrefix(text, "# Limits of sequences") || strings.Contains(text, "Answer to") {
		t.Errorf("unexpected question text:\n%s", text)
	}
}

func TestReadHandler_Errors(t *testing.T) {
	s, _ := newSearch()
	h := NewReadHandler(s)

	for _, docNo := range []string{"", "404"} {
		result, _, err := h.Handle(context.Background(), &mcp.CallToolRequest{}, ReadArgument{DocNo: docNo})
		if err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
		if !result.IsError {
			t.Errorf("Expected error result for docno %q", docNo)
		}
	}
}
