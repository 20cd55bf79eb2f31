package mcp

import (
	"context"
	"fmt"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/fusion"
)

// Engine answers free-text queries with ranked hits.
type Engine interface {
	Search(ctx context.Context, req engine.SearchRequest) ([]domain.ScoredHit, error)
}

// Store returns stored fields of a post.
type Store interface {
	Lookup(ctx context.Context, docNo string, fields []string) (map[string]string, error)
}

// Search fuses the post engine with the optional formula engine for
// interactive queries.
type Search struct {
	Posts      Engine
	Math       Engine
	Store      Store
	PostWeight float64
	MathWeight float64
	Model      engine.Model
	Depth      int
}

// Post is a fused hit with its display fields.
type Post struct {
	DocNo    string
	Score    float64
	Title    string
	Tags     string
	Votes    string
	ParentNo string
}

var displayFields = []string{domain.FieldTitle, domain.FieldTags, domain.FieldVotes, domain.FieldParentNo}

// Query returns the best limit posts for text. Without a formula engine the
// post list is used alone.
func (s *Search) Query(ctx context.Context, text string, limit int) ([]Post, error) {
	req := engine.SearchRequest{QID: "mcp", Query: text, Model: s.Model, Size: s.Depth}

	postHits, err := s.Posts.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	lists := []fusion.List{{Name: "post", Hits: postHits, Weight: s.PostWeight}}

	if s.Math != nil {
		req.Fields = []string{domain.FieldPostNo}
		mathHits, err := s.Math.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		lists = append(lists, fusion.List{Name: "math", Hits: mathHits, Weight: s.MathWeight, Remap: fusion.MetaLinker{}})
	}

	fused, err := fusion.Fuse(lists)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	out := make([]Post, 0, len(fused))
	for _, h := range fused {
		meta, err := s.Store.Lookup(ctx, h.DocNo, displayFields)
		if err != nil {
			return nil, fmt.Errorf("loading post %s: %w", h.DocNo, err)
		}
		out = append(out, Post{
			DocNo:    h.DocNo,
			Score:    h.Score,
			Title:    meta[domain.FieldTitle],
			Tags:     meta[domain.FieldTags],
			Votes:    meta[domain.FieldVotes],
			ParentNo: meta[domain.FieldParentNo],
		})
	}
	return out, nil
}

// Get returns the stored fields of one post.
func (s *Search) Get(ctx context.Context, docNo string) (map[string]string, error) {
	return s.Store.Lookup(ctx, docNo, []string{
		domain.FieldTitle, domain.FieldText, domain.FieldTags, domain.FieldVotes, domain.FieldParentNo, domain.FieldMathNos,
	})
}
