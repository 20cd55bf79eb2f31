// Package rerank holds alternative scorers that re-score a candidate set so
// it can be fused as another weighted source.
package rerank

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
)

// Scorer re-scores the candidates of a query. Output hits are ordered by
// descending score then docno with 0-based ranks.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []domain.ScoredHit) ([]domain.ScoredHit, error)
	Name() string
}

// Lookup fetches stored fields of a post.
type Lookup interface {
	Lookup(ctx context.Context, docNo string, fields []string) (map[string]string, error)
}

// VoteScorer scores each candidate by the log-damped vote count of its post:
// sign(v) * ln(1 + |v|).
type VoteScorer struct {
	lookup Lookup
}

// NewVoteScorer creates a VoteScorer reading votes through lookup.
func NewVoteScorer(lookup Lookup) *VoteScorer {
	return &VoteScorer{lookup: lookup}
}

// Name implements Scorer.
func (s *VoteScorer) Name() string {
	return "votes"
}

// Score implements Scorer.
func (s *VoteScorer) Score(ctx context.Context, _ string, candidates []domain.ScoredHit) ([]domain.ScoredHit, error) {
	out := make([]domain.ScoredHit, len(candidates))
	for i, c := range candidates {
		meta, err := s.lookup.Lookup(ctx, c.DocNo, []string{domain.FieldVotes})
		if err != nil {
			return nil, &domain.EngineError{Engine: s.Name(), Op: "rerank", QID: c.QID, Err: err}
		}
		c.Score = VotePrior(meta[domain.FieldVotes])
		out[i] = c
	}
	domain.RankScored(out)
	return out, nil
}

// VotePrior converts a stored vote count; unparsable counts score 0.
func VotePrior(votes string) float64 {
	v, err := strconv.Atoi(strings.TrimSpace(votes))
	if err != nil || v == 0 {
		return 0
	}
	prior := math.Log1p(math.Abs(float64(v)))
	if v < 0 {
		return -prior
	}
	return prior
}
