// Package fusion combines ranked lists from heterogeneous sources by weighted
// linear interpolation, after mapping formula-level hits onto their posts.
package fusion

import (
	"cmp"
	"slices"

	"github.com/sha1n/mathfuse/internal/domain"
)

// FormulaField is the hit metadata key that keeps the original formula docno
// after a hit is remapped to its post.
const FormulaField = "formulano"

// Linker resolves the owning post of a formula hit.
type Linker interface {
	Owner(hit domain.ScoredHit) (string, error)
}

// MetaLinker reads the owning post from the hit's stored metadata, as
// returned by a formula index that stores postno.
type MetaLinker struct {
	Field string
}

// Owner implements Linker.
func (l MetaLinker) Owner(hit domain.ScoredHit) (string, error) {
	field := l.Field
	if field == "" {
		field = domain.FieldPostNo
	}
	post, ok := hit.Meta[field]
	if !ok || post == "" {
		return "", &domain.LinkageError{FormulaID: hit.DocNo}
	}
	return post, nil
}

// List is one weighted input of a fusion. Remap is set when the hits are
// formula-level and must be mapped to posts first.
type List struct {
	Name   string
	Hits   []domain.ScoredHit
	Weight float64
	Remap  Linker
}

// RemapToPosts replaces every formula docno with its owning post and keeps
// only the best-ranked hit per (qid, post). Input order within a query is
// taken from Rank.
func RemapToPosts(hits []domain.ScoredHit, linker Linker) ([]domain.ScoredHit, error) {
	sorted := byRank(hits)
	out := make([]domain.ScoredHit, 0, len(sorted))
	seen := make(map[[2]string]bool, len(sorted))
	for _, h := range sorted {
		post, err := linker.Owner(h)
		if err != nil {
			return nil, err
		}
		key := [2]string{h.QID, post}
		if seen[key] {
			continue
		}
		seen[key] = true

		meta := make(map[string]string, len(h.Meta)+1)
		for k, v := range h.Meta {
			meta[k] = v
		}
		meta[FormulaField] = h.DocNo
		h.DocNo = post
		h.Meta = meta
		out = append(out, h)
	}
	rerank(out)
	return out, nil
}

// Fuse combines lists into one ranked list per query. A (qid, docno) pair
// scores the sum of weight*score over the lists it appears in. Each query's
// hits are ordered by descending score, then ascending docno, with 0-based
// ranks. Queries are returned in ascending qid order.
func Fuse(lists []List) ([]domain.FusedHit, error) {
	type key struct{ qid, doc string }
	scores := make(map[key]float64)
	var keys []key

	for _, l := range lists {
		hits := l.Hits
		if l.Remap != nil {
			var err error
			if hits, err = RemapToPosts(hits, l.Remap); err != nil {
				return nil, err
			}
		}
		seen := make(map[key]bool, len(hits))
		for _, h := range byRank(hits) {
			k := key{h.QID, h.DocNo}
			if seen[k] {
				continue
			}
			seen[k] = true
			if _, ok := scores[k]; !ok {
				keys = append(keys, k)
			}
			scores[k] += l.Weight * h.Score
		}
	}

	fused := make([]domain.FusedHit, len(keys))
	for i, k := range keys {
		fused[i] = domain.FusedHit{QID: k.qid, DocNo: k.doc, Score: scores[k]}
	}
	return Order(fused), nil
}

// Order sorts fused hits by qid and ranks each query's hits.
func Order(hits []domain.FusedHit) []domain.FusedHit {
	slices.SortStableFunc(hits, func(a, b domain.FusedHit) int {
		return cmp.Compare(a.QID, b.QID)
	})
	for start := 0; start < len(hits); {
		end := start + 1
		for end < len(hits) && hits[end].QID == hits[start].QID {
			end++
		}
		domain.RankFused(hits[start:end])
		start = end
	}
	return hits
}

// byRank returns a copy of hits ordered by qid first-seen, then rank.
func byRank(hits []domain.ScoredHit) []domain.ScoredHit {
	order, groups := domain.GroupByQuery(hits, func(h domain.ScoredHit) string { return h.QID })
	out := make([]domain.ScoredHit, 0, len(hits))
	for _, qid := range order {
		g := groups[qid]
		slices.SortStableFunc(g, func(a, b domain.ScoredHit) int {
			return cmp.Compare(a.Rank, b.Rank)
		})
		out = append(out, g...)
	}
	return out
}

// rerank reassigns 0-based ranks within each query after filtering.
func rerank(hits []domain.ScoredHit) {
	next := make(map[string]int)
	for i := range hits {
		hits[i].Rank = next[hits[i].QID]
		next[hits[i].QID]++
	}
}
