// Package experiment runs batches of topics through named fusion pipelines
// and evaluates each pipeline against the judgments.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sha1n/mathfuse/internal/cache"
	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/evaluation"
	"github.com/sha1n/mathfuse/internal/fusion"
	"github.com/sha1n/mathfuse/internal/rerank"
	"github.com/sha1n/mathfuse/internal/runfile"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// Engine answers free-text queries with ranked hits.
type Engine interface {
	Search(ctx context.Context, req engine.SearchRequest) ([]domain.ScoredHit, error)
}

// Retriever binds an engine to the identity of its index, used to key cached
// lists, and to the stored fields its hits must carry.
type Retriever struct {
	Engine   Engine
	Identity string
	Tokens   string
	Fields   []string
}

// Options control retrieval depth, parallelism and outputs.
type Options struct {
	Depth       int
	Concurrency int
	Model       engine.Model
	RunsDir     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetriever registers the retriever of an engine name.
func WithRetriever(name string, r Retriever) Option {
	return func(rn *Runner) {
		rn.retrievers[name] = r
	}
}

// WithScorer registers a reranker under its name.
func WithScorer(s rerank.Scorer) Option {
	return func(rn *Runner) {
		rn.scorers[s.Name()] = s
	}
}

// WithCache replaces the per-run memory cache.
func WithCache(c *cache.Cache) Option {
	return func(rn *Runner) {
		rn.cache = c
	}
}

// WithMetrics records experiment counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(rn *Runner) {
		rn.metrics = m
	}
}

// Runner evaluates experiments over a topic batch.
type Runner struct {
	retrievers map[string]Retriever
	scorers    map[string]rerank.Scorer
	cache      *cache.Cache
	ownsCache  bool
	evaluator  *evaluation.Evaluator
	opts       Options
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// NewRunner creates a Runner. Without WithCache, lists are memoized in
// process memory for the lifetime of the runner.
func NewRunner(evaluator *evaluation.Evaluator, opts Options, options ...Option) (*Runner, error) {
	if opts.Depth <= 0 {
		opts.Depth = engine.DefaultDepth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	r := &Runner{
		retrievers: make(map[string]Retriever),
		scorers:    make(map[string]rerank.Scorer),
		evaluator:  evaluator,
		opts:       opts,
		logger:     slog.Default().With("component", "experiment"),
	}
	for _, o := range options {
		o(r)
	}
	if r.cache == nil {
		c, err := cache.New(cache.NewMemoryBackend(), r.metrics)
		if err != nil {
			return nil, err
		}
		r.cache = c
		r.ownsCache = true
	}
	return r, nil
}

// Result is the evaluated outcome of one experiment.
type Result struct {
	Experiment Experiment
	Summary    evaluation.Summary
	Hits       []domain.FusedHit
	RunFile    string
}

// Report is the outcome of a batch.
type Report struct {
	Options     evaluation.Options
	Model       engine.Model
	Topics      int
	Baseline    string
	Results     []Result
	Comparisons []evaluation.Comparison
}

// Run evaluates every experiment of defs over topics. Topics run
// concurrently; within a topic, experiments run in order and share cached
// engine lists. Any engine or reranker failure aborts the batch.
func (r *Runner) Run(ctx context.Context, topics []domain.TopicRecord, defs *Definitions) (*Report, error) {
	exps := defs.All()
	if err := r.check(exps); err != nil {
		return nil, err
	}

	fused := make([][][]domain.FusedHit, len(exps))
	elapsed := make([][]time.Duration, len(exps))
	for i := range exps {
		fused[i] = make([][]domain.FusedHit, len(topics))
		elapsed[i] = make([]time.Duration, len(topics))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for ti, topic := range topics {
		g.Go(func() error {
			for ei, e := range exps {
				start := time.Now()
				hits, err := r.runTopic(gctx, e, topic)
				if err != nil {
					return fmt.Errorf("experiment %q, topic %s: %w", e.Name, topic.QID, err)
				}
				fused[ei][ti] = hits
				elapsed[ei][ti] = time.Since(start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	qids := make([]string, len(topics))
	for i, t := range topics {
		qids[i] = t.QID
	}

	report := &Report{
		Options:  r.evaluator.Options(),
		Model:    r.opts.Model,
		Topics:   len(topics),
		Baseline: defs.BaselineExperiment(),
	}
	for ei, e := range exps {
		var all []domain.FusedHit
		var total time.Duration
		for ti := range topics {
			all = append(all, fused[ei][ti]...)
			total += elapsed[ei][ti]
		}

		summary := r.evaluator.Evaluate(e.Name, qids, all)
		if len(topics) > 0 {
			summary.MeanResponse = total / time.Duration(len(topics))
		}
		res := Result{Experiment: e, Summary: summary, Hits: r.evaluator.Select(all)}

		if r.opts.RunsDir != "" {
			res.RunFile = filepath.Join(r.opts.RunsDir, runfile.FileName(e.Name))
			if err := runfile.WriteFile(res.RunFile, res.Hits, runfile.Tag(e.Name)); err != nil {
				return nil, err
			}
		}

		r.metrics.ExperimentDone()
		r.logger.Info("Experiment evaluated",
			"name", e.Name,
			"ndcg", summary.NDCG,
			"map", summary.MAP,
			"p10", summary.P10,
			"mrt_ms", summary.MeanResponseMillis(),
		)
		report.Results = append(report.Results, res)
	}

	var base *Result
	for i := range report.Results {
		if report.Results[i].Experiment.Name == report.Baseline {
			base = &report.Results[i]
		}
	}
	if base != nil {
		for _, res := range report.Results {
			if res.Experiment.Name != base.Experiment.Name {
				report.Comparisons = append(report.Comparisons, evaluation.Compare(base.Summary, res.Summary))
			}
		}
	}
	return report, nil
}

// check verifies every source names a registered engine and reranker.
func (r *Runner) check(exps []Experiment) error {
	for _, e := range exps {
		for _, s := range e.Sources {
			if _, ok := r.retrievers[s.Engine]; !ok {
				return fmt.Errorf("experiment %q: engine %q is not available", e.Name, s.Engine)
			}
			if s.Rerank == "" {
				continue
			}
			if _, ok := r.scorers[s.Rerank]; !ok {
				return fmt.Errorf("experiment %q: reranker %q is not configured", e.Name, s.Rerank)
			}
		}
	}
	return nil
}

// runTopic retrieves, remaps, reranks and fuses the sources of e for one topic.
func (r *Runner) runTopic(ctx context.Context, e Experiment, t domain.TopicRecord) ([]domain.FusedHit, error) {
	lists := make([]fusion.List, 0, len(e.Sources))
	for _, s := range e.Sources {
		hits, err := r.retrieve(ctx, s.Engine, t)
		if err != nil {
			return nil, err
		}
		if s.Engine == EngineMath {
			if hits, err = fusion.RemapToPosts(hits, fusion.MetaLinker{}); err != nil {
				return nil, err
			}
		}
		if s.Rerank != "" {
			if hits, err = r.rerank(ctx, s, t, hits); err != nil {
				return nil, err
			}
		}
		lists = append(lists, fusion.List{Name: s.Label(), Hits: hits, Weight: s.Weight})
	}
	return fusion.Fuse(lists)
}

// retrieve returns the engine list of a topic, from cache when present.
func (r *Runner) retrieve(ctx context.Context, name string, t domain.TopicRecord) ([]domain.ScoredHit, error) {
	ret := r.retrievers[name]
	key := cache.Key{
		Engine: name,
		Index:  ret.Identity,
		Model:  string(r.opts.Model),
		Tokens: ret.Tokens,
		Depth:  r.opts.Depth,
		QID:    t.QID,
		Query:  t.Query,
	}
	hits, _, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]domain.ScoredHit, error) {
		return ret.Engine.Search(ctx, engine.SearchRequest{
			QID:    t.QID,
			Query:  t.Query,
			Model:  r.opts.Model,
			Size:   r.opts.Depth,
			Fields: ret.Fields,
		})
	})
	return hits, err
}

// rerank re-scores the first RerankDepth hits; the rest are dropped.
func (r *Runner) rerank(ctx context.Context, s Source, t domain.TopicRecord, hits []domain.ScoredHit) ([]domain.ScoredHit, error) {
	depth := s.RerankDepth
	if depth <= 0 || depth > len(hits) {
		depth = len(hits)
	}
	return r.scorers[s.Rerank].Score(ctx, t.Query, hits[:depth])
}

// Close releases the memory cache created by NewRunner. A cache supplied
// with WithCache stays open.
func (r *Runner) Close() error {
	if !r.ownsCache {
		return nil
	}
	return r.cache.Close()
}
