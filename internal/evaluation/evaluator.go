// Package evaluation restricts ranked lists to the evaluated candidate set and
// scores them against graded relevance judgments.
package evaluation

import (
	"time"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/qrels"
)

// Options control the candidate set and binarization.
type Options struct {
	TopK      int
	Prime     bool
	Threshold int
}

// QueryMetrics are the per-query values of one evaluated run.
type QueryMetrics struct {
	QID       string  `json:"qid"`
	NDCG      float64 `json:"ndcg"`
	AP        float64 `json:"map"`
	P10       float64 `json:"P_10"`
	Retrieved int     `json:"retrieved"`
	Judged    bool    `json:"judged"`
}

// Value returns the per-query value of a named metric.
func (q QueryMetrics) Value(metric string) float64 {
	switch metric {
	case MetricNDCG:
		return q.NDCG
	case MetricP10:
		return q.P10
	case MetricMAP:
		return q.AP
	}
	return 0
}

// Summary is the mean of each metric over every query of the batch,
// unjudged queries counting as 0.
type Summary struct {
	Name          string         `json:"name"`
	NDCG          float64        `json:"ndcg"`
	MAP           float64        `json:"map"`
	P10           float64        `json:"P_10"`
	MeanResponse  time.Duration  `json:"-"`
	Queries       int            `json:"queries"`
	JudgedQueries int            `json:"judged_queries"`
	PerQuery      []QueryMetrics `json:"per_query,omitempty"`
}

// MeanResponseMillis returns the mean response time in milliseconds.
func (s Summary) MeanResponseMillis() float64 {
	return float64(s.MeanResponse) / float64(time.Millisecond)
}

// Value returns the mean value of a named metric.
func (s Summary) Value(metric string) float64 {
	switch metric {
	case MetricNDCG:
		return s.NDCG
	case MetricP10:
		return s.P10
	case MetricMAP:
		return s.MAP
	case MetricMRT:
		return s.MeanResponseMillis()
	}
	return 0
}

// Evaluator scores fused runs against a judgment set.
type Evaluator struct {
	judgments *qrels.Set
	binary    *qrels.Set
	opts      Options
}

// NewEvaluator creates an Evaluator. The binarized subset is derived once.
func NewEvaluator(judgments *qrels.Set, opts Options) *Evaluator {
	return &Evaluator{
		judgments: judgments,
		binary:    judgments.Binarize(opts.Threshold),
		opts:      opts,
	}
}

// Options returns the evaluator's options.
func (e *Evaluator) Options() Options {
	return e.opts
}

// Select applies the top-k and prime filter of the evaluator.
func (e *Evaluator) Select(hits []domain.FusedHit) []domain.FusedHit {
	return Filter(hits, e.judgments, e.opts.TopK, e.opts.Prime)
}

// Evaluate filters hits and computes the summary over qids. Queries in qids
// without hits or judgments contribute 0; hits of queries outside qids are
// ignored. A nil qids evaluates the queries present in hits.
func (e *Evaluator) Evaluate(name string, qids []string, hits []domain.FusedHit) Summary {
	order, groups := domain.GroupByQuery(e.Select(hits), func(h domain.FusedHit) string { return h.QID })
	if qids == nil {
		qids = order
	}

	s := Summary{Name: name, Queries: len(qids), PerQuery: make([]QueryMetrics, 0, len(qids))}
	for _, qid := range qids {
		q := e.query(qid, groups[qid])
		if q.Judged {
			s.JudgedQueries++
		}
		s.NDCG += q.NDCG
		s.MAP += q.AP
		s.P10 += q.P10
		s.PerQuery = append(s.PerQuery, q)
	}
	if n := float64(len(qids)); n > 0 {
		s.NDCG /= n
		s.MAP /= n
		s.P10 /= n
	}
	return s
}

func (e *Evaluator) query(qid string, hits []domain.FusedHit) QueryMetrics {
	q := QueryMetrics{QID: qid, Retrieved: len(hits), Judged: e.judgments.Count(qid) > 0}
	if !q.Judged {
		return q
	}

	grades := make([]int, len(hits))
	relevant := make([]bool, len(hits))
	for i, h := range hits {
		grades[i], _ = e.judgments.Grade(qid, h.DocNo)
		relevant[i] = e.binary.Has(qid, h.DocNo)
	}

	q.NDCG = NDCG(grades, e.judgments.Grades(qid))
	q.AP = AveragePrecision(relevant, e.binary.Count(qid))
	q.P10 = PrecisionAt(relevant, PrecisionCutoff)
	return q
}
