package domain

import (
	"cmp"
	"slices"
)

// compareScored orders by descending score, then ascending docno.
func compareScored(aScore, bScore float64, aDoc, bDoc string) int {
	if c := cmp.Compare(bScore, aScore); c != 0 {
		return c
	}
	return cmp.Compare(aDoc, bDoc)
}

// RankScored sorts the hits of one query by descending score with ties
// broken by ascending docno, and reassigns 0-based ranks.
func RankScored(hits []ScoredHit) {
	slices.SortStableFunc(hits, func(a, b ScoredHit) int {
		return compareScored(a.Score, b.Score, a.DocNo, b.DocNo)
	})
	for i := range hits {
		hits[i].Rank = i
	}
}

// RankFused is RankScored for fused hits.
func RankFused(hits []FusedHit) {
	slices.SortStableFunc(hits, func(a, b FusedHit) int {
		return compareScored(a.Score, b.Score, a.DocNo, b.DocNo)
	})
	for i := range hits {
		hits[i].Rank = i
	}
}

// GroupByQuery splits hits by qid, preserving the relative order of each
// query's hits. Query ids are returned in first-seen order.
func GroupByQuery[H any](hits []H, qid func(H) string) ([]string, map[string][]H) {
	var order []string
	groups := make(map[string][]H)
	for _, h := range hits {
		q := qid(h)
		if _, ok := groups[q]; !ok {
			order = append(order, q)
		}
		groups[q] = append(groups[q], h)
	}
	return order, groups
}
