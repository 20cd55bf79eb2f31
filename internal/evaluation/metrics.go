package evaluation

import (
	"math"
)

// PrecisionCutoff is the fixed cutoff of the precision metric.
const PrecisionCutoff = 10

// Metric names as reported.
const (
	MetricNDCG = "ndcg"
	MetricP10  = "P_10"
	MetricMAP  = "map"
	MetricMRT  = "mrt"
)

// DCG sums grade/log2(i+2) over 0-based positions i.
func DCG(grades []int) float64 {
	var dcg float64
	for i, g := range grades {
		dcg += float64(g) / math.Log2(float64(i+2))
	}
	return dcg
}

// NDCG normalizes the DCG of a ranked list of grades by the DCG of the ideal
// ordering of every judged grade of the query (descending). A query without
// positive judgments yields 0.
func NDCG(grades, ideal []int) float64 {
	idcg := DCG(ideal)
	if idcg == 0 {
		return 0
	}
	return DCG(grades) / idcg
}

// AveragePrecision over a ranked list of binary relevance flags, divided by
// the number of relevant documents judged for the query.
func AveragePrecision(relevant []bool, numRelevant int) float64 {
	if numRelevant == 0 {
		return 0
	}
	var hits int
	var sum float64
	for i, r := range relevant {
		if r {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(numRelevant)
}

// PrecisionAt counts the relevant hits among the first k positions, divided by k.
func PrecisionAt(relevant []bool, k int) float64 {
	if k <= 0 {
		return 0
	}
	var n int
	for i := 0; i < k && i < len(relevant); i++ {
		if relevant[i] {
			n++
		}
	}
	return float64(n) / float64(k)
}
