package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/corpus"
	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/engine"
	"github.com/sha1n/mathfuse/internal/report"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// testQueryHits is the number of hits shown per test query.
const testQueryHits = 10

// IndexArgs select what the index command builds and prints.
type IndexArgs struct {
	Path     string
	Math     bool
	MathPost bool
	Lexicon  bool
	Stats    bool
	Debug    bool
	Queries  []string
}

// IndexArgsFromFlags reads the local index flags.
func IndexArgsFromFlags(path string, flags *pflag.FlagSet) IndexArgs {
	args := IndexArgs{Path: path}
	args.Math, _ = flags.GetBool(MathFlag)
	args.MathPost, _ = flags.GetBool(MathPostFlag)
	args.Lexicon, _ = flags.GetBool(LexiconFlag)
	args.Stats, _ = flags.GetBool(StatsFlag)
	args.Debug, _ = flags.GetBool(DebugFlag)
	args.Queries, _ = flags.GetStringArray(QueryFlag)
	return args
}

// kinds returns the index kinds to build, posts first.
func (a IndexArgs) kinds() []string {
	switch {
	case a.MathPost:
		return []string{engine.KindPost, engine.KindMath}
	case a.Math:
		return []string{engine.KindMath}
	default:
		return []string{engine.KindPost}
	}
}

// displayFields are the meta fields shown for test query hits.
var displayFields = map[string][]string{
	engine.KindPost: {domain.FieldParentNo, domain.FieldVotes, domain.FieldTitle},
	engine.KindMath: {domain.FieldPostNo, domain.FieldParentNo, domain.FieldText},
}

// RunIndex builds the requested indexes from a post archive and prints the
// requested views of each.
func RunIndex(ctx context.Context, params RunParams, flags *pflag.FlagSet, args IndexArgs) error {
	if args.Math && args.MathPost {
		return fmt.Errorf("--%s and --%s are mutually exclusive", MathFlag, MathPostFlag)
	}

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

	b := &indexBuilder{
		settings: settings,
		model:    model,
		metrics:  metrics,
		pipeline: corpus.NewPipeline(corpus.NewBuilder(nil), settings.Index.Workers, metrics),
		path:     args.Path,
	}
	if args.Debug {
		b.debug = params.stdout()
	}
	if args.MathPost {
		b.posts = make(map[string]bool)
	}

	out := params.stdout()
	for _, kind := range args.kinds() {
		h, err := b.build(ctx, kind)
		if err != nil {
			return err
		}
		err = view(ctx, out, h, args, model)
		if closeErr := h.Close(); closeErr != nil {
			slog.Error("Failed to close index", "kind", kind, "error", closeErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// indexBuilder runs one normalization pass over the archive per index kind.
type indexBuilder struct {
	settings *config.Settings
	model    engine.Model
	metrics  *telemetry.Metrics
	pipeline *corpus.Pipeline
	path     string
	debug    io.Writer

	// posts collects post docnos during the post pass so the formula pass
	// can check that every formula references an indexed post.
	posts map[string]bool
}

func (b *indexBuilder) build(ctx context.Context, kind string) (*engine.Handle, error) {
	schema, _ := engine.SchemaFor(kind)
	tokens := b.settings.Index.Tokens
	if kind == engine.KindMath {
		tokens = b.settings.Index.MathTokens
	}

	target := engine.Path(b.settings.Index.Dir, b.settings.Index.Name, kind)
	slog.Info("Building index", "kind", kind, "source", b.path, "path", target)

	src := func(ctx context.Context, emit func(engine.Document) error) error {
		f, err := os.Open(b.path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		reader := corpus.NewPostReader(f)
		if kind == engine.KindPost {
			_, err = b.pipeline.EmitPosts(ctx, reader, func(p domain.PostRecord) error {
				if b.posts != nil {
					b.posts[p.DocNo] = true
				}
				if b.debug != nil {
					if _, err := fmt.Fprintf(b.debug, "\nDOCNO: %s\nTITLE: %s\nBODY: %s\nTAGS: %s\n", p.DocNo, p.Title, p.Text, p.Tags); err != nil {
						return err
					}
				}
				return emit(engine.PostDocument(p))
			})
			return err
		}
		_, err = b.pipeline.EmitFormulas(ctx, reader, func(r domain.FormulaRecord) error {
			if b.posts != nil && !b.posts[r.PostNo] {
				return &domain.LinkageError{FormulaID: r.DocNo, PostNo: r.PostNo}
			}
			return emit(engine.FormulaDocument(r))
		})
		return err
	}

	return engine.Build(ctx, target, schema, src, engine.BuildOptions{
		Tokens:    tokens,
		Model:     b.model,
		BatchSize: b.settings.Index.BatchSize,
		Origin:    b.path,
		Metrics:   b.metrics,
	})
}

// view prints statistics, the lexicon and test query hits of h.
func view(ctx context.Context, w io.Writer, h *engine.Handle, args IndexArgs, model engine.Model) error {
	if args.Stats {
		stats, err := h.Stats()
		if err != nil {
			return err
		}
		if err := report.WriteIndexStats(w, stats); err != nil {
			return err
		}
	}

	if args.Lexicon {
		for _, field := range h.Schema().Searchable() {
			terms, err := h.Lexicon(field)
			if err != nil {
				return err
			}
			if err := report.WriteLexicon(w, field, terms); err != nil {
				return err
			}
		}
	}

	fields := displayFields[h.Kind()]
	for i, q := range args.Queries {
		hits, err := h.Search(ctx, engine.SearchRequest{
			QID:    strconv.Itoa(i + 1),
			Query:  q,
			Model:  model,
			Size:   testQueryHits,
			Fields: fields,
		})
		if err != nil {
			return err
		}
		title := fmt.Sprintf("%s index, query %d: %s", h.Kind(), i+1, q)
		if err := report.WriteHits(w, title, hits, fields); err != nil {
			return err
		}
	}
	return nil
}
