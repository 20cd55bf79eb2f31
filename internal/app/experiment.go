package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/cache"
	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/evaluation"
	"github.com/sha1n/mathfuse/internal/experiment"
	"github.com/sha1n/mathfuse/internal/fusion"
	"github.com/sha1n/mathfuse/internal/markup"
	"github.com/sha1n/mathfuse/internal/qrels"
	"github.com/sha1n/mathfuse/internal/report"
	"github.com/sha1n/mathfuse/internal/rerank"
	"github.com/sha1n/mathfuse/internal/runfile"
	"github.com/sha1n/mathfuse/internal/telemetry"
	"github.com/sha1n/mathfuse/internal/topics"
)

// pingTimeout bounds the redis reachability check.
const pingTimeout = 2 * time.Second

// RunExperiments evaluates the configured experiments over a topic file and
// prints the report.
func RunExperiments(ctx context.Context, params RunParams, flags *pflag.FlagSet, topicsPath, qrelsPath string) error {
	settings, err := params.setup(flags)
	if err != nil {
		return err
	}
	config.Log(settings)

	metrics := telemetry.New()
	stop := serveMetrics(settings.Metrics.Addr, metrics)
	defer stop()

	model, err := engine.ParseModel(settings.Index.Model)
	if err != nil {
		return err
	}

	batch, err := loadTopics(topicsPath)
	if err != nil {
		return err
	}
	judgments, err := qrels.LoadFile(qrelsPath)
	if err != nil {
		return err
	}
	slog.Info("Inputs loaded", "topics", len(batch), "judgments", judgments.Len())

	defs := experiment.Defaults(settings.Run.MathWeight, settings.Run.PostWeight)
	if settings.Run.Experiments != "" {
		if defs, err = experiment.LoadFile(settings.Run.Experiments); err != nil {
			return err
		}
	}

	options := []experiment.Option{experiment.WithMetrics(metrics)}

	handles, err := openEngines(settings, defs, metrics)
	defer closeAll(handles)
	if err != nil {
		return err
	}
	for name, h := range handles {
		options = append(options, experiment.WithRetriever(name, retrieverFor(h)))
	}

	// Rerankers score posts, so they need the post index for stored fields
	if posts, ok := handles[experiment.EnginePost]; ok {
		options = append(options, experiment.WithScorer(rerank.NewVoteScorer(posts)))
		if settings.Rerank.URL != "" {
			options = append(options, experiment.WithScorer(rerank.NewHTTPScorer(rerank.HTTPConfig{
				URL:     settings.Rerank.URL,
				Timeout: settings.Rerank.Timeout,
				Rate:    settings.Rerank.Rate,
				Burst:   settings.Rerank.Burst,
			}, posts)))
		}
	}

	lists, err := openCache(ctx, settings.Cache, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := lists.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}()
	options = append(options, experiment.WithCache(lists))

	evaluator := evaluation.NewEvaluator(judgments, evalOptions(settings))
	runner, err := experiment.NewRunner(evaluator, experiment.Options{
		Depth:       settings.Run.Depth,
		Concurrency: settings.Run.Concurrency,
		Model:       model,
		RunsDir:     settings.Run.RunsDir,
	}, options...)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	if settings.Run.RunsDir != "" {
		if err := os.MkdirAll(settings.Run.RunsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create runs directory: %w", err)
		}
	}

	rep, err := runner.Run(ctx, batch, defs)
	if err != nil {
		return err
	}
	return report.Write(params.stdout(), rep, settings.Run.Format)
}

// RunEval evaluates an existing TREC run file against judgments.
func RunEval(ctx context.Context, params RunParams, flags *pflag.FlagSet, runPath, qrelsPath string) error {
	settings, err := params.setup(flags)
	if err != nil {
		return err
	}

	hits, err := runfile.ReadFile(runPath)
	if err != nil {
		return err
	}
	// External runs may be 1-based or unsorted.
	hits = fusion.Order(hits)

	judgments, err := qrels.LoadFile(qrelsPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	evaluator := evaluation.NewEvaluator(judgments, evalOptions(settings))
	summary := evaluator.Evaluate(runPath, nil, hits)

	rep := &experiment.Report{
		Options:  evaluator.Options(),
		Topics:   summary.Queries,
		Baseline: runPath,
		Results: []experiment.Result{{
			Experiment: experiment.Experiment{Name: runPath},
			Summary:    summary,
			Hits:       evaluator.Select(hits),
			RunFile:    runPath,
		}},
	}
	return report.Write(params.stdout(), rep, settings.Run.Format)
}

// RunTopics prints the normalized topics of a topic file, with judgment
// counts when qrelsPath is not empty.
func RunTopics(params RunParams, flags *pflag.FlagSet, topicsPath, qrelsPath string) error {
	settings, err := params.setup(flags)
	if err != nil {
		return err
	}

	batch, err := loadTopics(topicsPath)
	if err != nil {
		return err
	}

	var judgments *qrels.Set
	if qrelsPath != "" {
		if judgments, err = qrels.LoadFile(qrelsPath); err != nil {
			return err
		}
	}
	return report.WriteTopics(params.stdout(), batch, judgments, settings.Run.Threshold)
}

func evalOptions(settings *config.Settings) evaluation.Options {
	return evaluation.Options{
		TopK:      settings.Run.TopK,
		Prime:     settings.Run.Prime,
		Threshold: settings.Run.Threshold,
	}
}

func loadTopics(path string) ([]domain.TopicRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topics: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := topics.Read(f, markup.NewHTMLParser())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return topics.NewBuilder(markup.NewNormalizer()).BuildAll(raw), nil
}

// openEngines opens the index of every engine some experiment uses. Handles
// opened before a failure are returned so the caller can close them.
func openEngines(settings *config.Settings, defs *experiment.Definitions, metrics *telemetry.Metrics) (map[string]*engine.Handle, error) {
	handles := make(map[string]*engine.Handle)
	for _, e := range defs.All() {
		for _, s := range e.Sources {
			if _, ok := handles[s.Engine]; ok {
				continue
			}
			h, err := engine.Open(engine.Path(settings.Index.Dir, settings.Index.Name, s.Engine), metrics)
			if err != nil {
				return handles, fmt.Errorf("engine %q: %w", s.Engine, err)
			}
			handles[s.Engine] = h
		}
	}
	return handles, nil
}

// retrieverFor binds a handle to the identity of its build. Formula hits
// carry the owning post so they can be remapped.
func retrieverFor(h *engine.Handle) experiment.Retriever {
	m := h.Manifest()
	r := experiment.Retriever{
		Engine:   h,
		Identity: h.Path() + "@" + strconv.FormatInt(m.BuiltAt.UnixNano(), 10),
		Tokens:   m.Tokens,
	}
	if h.Kind() == engine.KindMath {
		r.Fields = []string{domain.FieldPostNo}
	}
	return r
}

func closeAll(handles map[string]*engine.Handle) {
	for name, h := range handles {
		if err := h.Close(); err != nil {
			slog.Error("Failed to close index", "engine", name, "error", err)
		}
	}
}

// openCache creates the configured list cache. An unreachable redis is
// reported but not fatal: every lookup then falls through to the engine.
func openCache(ctx context.Context, s config.CacheSettings, metrics *telemetry.Metrics) (*cache.Cache, error) {
	backend, err := cache.NewBackend(cache.Options{
		Type: s.Type,
		Dir:  s.Dir,
		Redis: cache.RedisConfig{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			TTL:      s.Redis.TTL,
		},
	})
	if err != nil {
		return nil, err
	}

	if r, ok := backend.(*cache.RedisBackend); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := r.Ping(pctx); err != nil {
			slog.Warn("Redis cache unreachable, lists will be recomputed", "addr", s.Redis.Addr, "error", err)
		}
	}

	c, err := cache.New(backend, metrics)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return c, nil
}
