package evaluation

// Delta counts the queries a run improved or degraded relative to a baseline.
type Delta struct {
	Improved int `json:"improved"`
	Degraded int `json:"degraded"`
}

// Comparison holds a Delta per metric.
type Comparison struct {
	Baseline string           `json:"baseline"`
	Run      string           `json:"run"`
	Deltas   map[string]Delta `json:"deltas"`
}

// ComparedMetrics are the metrics with per-query values.
var ComparedMetrics = []string{MetricNDCG, MetricP10, MetricMAP}

// Compare counts per-query improvements and degradations of run over
// baseline. Queries missing from either summary are skipped.
func Compare(baseline, run Summary) Comparison {
	base := make(map[string]QueryMetrics, len(baseline.PerQuery))
	for _, q := range baseline.PerQuery {
		base[q.QID] = q
	}

	c := Comparison{Baseline: baseline.Name, Run: run.Name, Deltas: make(map[string]Delta, len(ComparedMetrics))}
	for _, m := range ComparedMetrics {
		var d Delta
		for _, q := range run.PerQuery {
			b, ok := base[q.QID]
			if !ok {
				continue
			}
			switch v, bv := q.Value(m), b.Value(m); {
			case v > bv:
				d.Improved++
			case v < bv:
				d.Degraded++
			}
		}
		c.Deltas[m] = d
	}
	return c
}
