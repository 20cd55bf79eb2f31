package evaluation

import (
	"github.com/sha1n/mathfuse/internal/domain"
)

// Judged reports whether a (qid, docno) pair carries a judgment.
type Judged interface {
	Has(qid, docNo string) bool
}

// Filter keeps the hits ranked below topK and, when assessedOnly is set, only
// those whose (qid, docno) pair is judged. Survivors keep their relative
// order and their original rank.
func Filter(hits []domain.FusedHit, judged Judged, topK int, assessedOnly bool) []domain.FusedHit {
	out := make([]domain.FusedHit, 0, min(len(hits), max(topK, 0)))
	for _, h := range hits {
		if h.Rank >= topK {
			continue
		}
		if assessedOnly && !judged.Has(h.QID, h.DocNo) {
			continue
		}
		out = append(out, h)
	}
	return out
}
