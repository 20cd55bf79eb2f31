package rerank

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sha1n/mathfuse/internal/domain"
)

type fakeLookup map[string]map[string]string

func (f fakeLookup) Lookup(_ context.Context, docNo string, _ []string) (map[string]string, error) {
	meta, ok := f[docNo]
	if !ok {
		return nil, errors.New("not found: " + docNo)
	}
	return meta, nil
}

func TestVotePrior(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "0", want: 0},
		{in: "3", want: math.Log(4)},
		{in: "-3", want: -math.Log(4)},
		{in: "", want: 0},
		{in: "n/a", want: 0},
	}
	for _, tt := range tests {
		if got := VotePrior(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("VotePrior(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVoteScorer_Score(t *testing.T) {
	lookup := fakeLookup{
		"a": {domain.FieldVotes: "1"},
		"b": {domain.FieldVotes: "10"},
		"c": {domain.FieldVotes: "-2"},
		"d": {domain.FieldVotes: "1"},
	}
	in := []domain.ScoredHit{
		{QID: "1", DocNo: "d", Score: 9, Rank: 0},
		{QID: "1", DocNo: "c", Score: 8, Rank: 1},
		{QID: "1", DocNo: "b", Score: 7, Rank: 2},
		{QID: "1", DocNo: "a", Score: 6, Rank: 3},
	}

	out, err := NewVoteScorer(lookup).Score(context.Background(), "q", in)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := []string{"b", "a", "d", "c"}
	for i, h := range out {
		if h.DocNo != want[i] || h.Rank != i {
			t.Errorf("out[%d] = %s rank %d, want %s rank %d", i, h.DocNo, h.Rank, want[i], i)
		}
	}
	if in[0].Score != 9 {
		t.Error("Expected input candidates to be left untouched")
	}
}

func TestVoteScorer_LookupError(t *testing.T) {
	_, err := NewVoteScorer(fakeLookup{}).Score(context.Background(), "q", []domain.ScoredHit{{QID: "7", DocNo: "x"}})
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *EngineError", err)
	}
	if ee.QID != "7" || ee.Engine != "votes" {
		t.Errorf("EngineError = %+v", ee)
	}
}
