package corpus

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

const (
	// DefaultWorkers is the number of concurrent normalizers.
	DefaultWorkers = 4

	// chunkSize is the number of raw posts normalized per parallel round.
	chunkSize = 256
)

// Source yields raw posts until io.EOF.
type Source interface {
	Next() (domain.RawPost, error)
}

// SliceSource adapts an in-memory slice to Source.
type SliceSource struct {
	posts []domain.RawPost
	pos   int
}

// NewSliceSource creates a Source over posts.
func NewSliceSource(posts []domain.RawPost) *SliceSource {
	return &SliceSource{posts: posts}
}

// Next implements Source.
func (s *SliceSource) Next() (domain.RawPost, error) {
	if s.pos >= len(s.posts) {
		return domain.RawPost{}, io.EOF
	}
	p := s.posts[s.pos]
	s.pos++
	return p, nil
}

// Stats counts what a pass emitted.
type Stats struct {
	Posts    int
	Formulas int
}

// Pipeline normalizes a post stream with a bounded worker pool while keeping
// emission in input order, so repeated runs produce identical output.
type Pipeline struct {
	builder *Builder
	workers int
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewPipeline creates a pipeline. workers <= 0 selects DefaultWorkers; metrics may be nil.
func NewPipeline(builder *Builder, workers int, metrics *telemetry.Metrics) *Pipeline {
	if builder == nil {
		builder = NewBuilder(nil)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		builder: builder,
		workers: workers,
		metrics: metrics,
		logger:  slog.Default().With("component", "corpus"),
	}
}

// EmitPosts emits one PostRecord per raw post.
func (p *Pipeline) EmitPosts(ctx context.Context, src Source, emit func(domain.PostRecord) error) (Stats, error) {
	return p.Emit(ctx, src, PostMode, func(b Built) error {
		return emit(b.Post)
	})
}

// EmitFormulas emits one FormulaRecord per formula, in post order then formula order.
func (p *Pipeline) EmitFormulas(ctx context.Context, src Source, emit func(domain.FormulaRecord) error) (Stats, error) {
	return p.Emit(ctx, src, FormulaMode, func(b Built) error {
		for _, f := range b.Formulas {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// Emit normalizes src and hands each Built to emit in input order. The mode
// only determines what Stats counts as emitted and what is logged.
func (p *Pipeline) Emit(ctx context.Context, src Source, mode Mode, emit func(Built) error) (Stats, error) {
	var stats Stats
	chunk := make([]domain.RawPost, 0, chunkSize)
	built := make([]Built, chunkSize)

	flush := func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for i := range chunk {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				b, err := p.builder.Build(chunk[i])
				if err != nil {
					p.metrics.StructuralError()
					return err
				}
				built[i] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := range chunk {
			b := built[i]
			if err := emit(b); err != nil {
				return err
			}
			p.metrics.PostNormalized(len(b.Formulas))
			switch mode {
			case PostMode:
				stats.Posts++
			case FormulaMode:
				stats.Posts++
				stats.Formulas += len(b.Formulas)
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		chunk = append(chunk, raw)
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if len(chunk) > 0 {
		if err := flush(); err != nil {
			return stats, err
		}
	}

	p.logger.Info("Corpus pass complete", "mode", mode.String(), "posts", stats.Posts, "formulas", stats.Formulas)
	return stats, nil
}
