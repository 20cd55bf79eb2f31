// Package engine is the index and search collaborator of the harness: it
// builds bleve indexes from post or formula records and answers free-text
// queries with ranked hits.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// DefaultBatchSize is the number of documents per batch
	DefaultBatchSize = 500

	// MaxBatchBytes is the maximum bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024

	// DefaultDepth is the number of hits returned when a request sets none
	DefaultDepth = 1000
)

// Source streams documents into emit until exhausted.
type Source func(ctx context.Context, emit func(Document) error) error

// BuildOptions configure index construction.
type BuildOptions struct {
	Tokens    string
	Model     Model
	BatchSize int
	Origin    string
	Metrics   *telemetry.Metrics

	// LockTimeout bounds the wait for a concurrent build of the same index.
	LockTimeout time.Duration
}

// Path returns the index location for a named corpus of the given kind.
func Path(dir, name, kind string) string {
	return filepath.Join(dir, name+"-"+kind+IndexSuffix)
}

// Handle is an open index. It is owned by the caller, which must Close it.
type Handle struct {
	index    bleve.Index
	path     string
	schema   Schema
	manifest Manifest
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// Build creates the index at path, replacing any existing one, and indexes
// every document src emits. Builds of the same path are serialized across
// processes by a lock file next to the index.
func Build(ctx context.Context, path string, schema Schema, src Source, opts BuildOptions) (h *Handle, err error) {
	if opts.Model == "" {
		opts.Model = ModelBM25
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	im, err := NewIndexMapping(schema, opts.Tokens, opts.Model)
	if err != nil {
		return nil, err
	}

	lock, err := lockIndex(ctx, path, opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.release() }()

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove existing index: %w", err)
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = index.Close()
		}
	}()

	logger := slog.Default().With("component", "engine", "kind", schema.Kind)
	batch := index.NewBatch()
	batchSize := 0
	batchBytes := 0
	total := 0

	flush := func() error {
		if batchSize == 0 {
			return nil
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("batch index failed: %w", err)
		}
		opts.Metrics.Indexed(schema.Kind, batchSize)
		total += batchSize
		batch = index.NewBatch()
		batchSize = 0
		batchBytes = 0
		return nil
	}

	err = src(ctx, func(d Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := make(map[string]interface{}, len(d.Fields))
		for _, f := range schema.Fields {
			v := d.Fields[f.Name]
			fields[f.Name] = v
			batchBytes += len(v)
		}
		if err := batch.Index(d.ID, fields); err != nil {
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
		batchSize++
		if batchSize >= opts.BatchSize || batchBytes >= MaxBatchBytes {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	manifest := Manifest{
		Version:  ManifestVersion,
		Kind:     schema.Kind,
		Tokens:   opts.Tokens,
		Model:    opts.Model,
		DocCount: total,
		Source:   opts.Origin,
		BuiltAt:  time.Now().UTC(),
	}
	if err := manifest.Save(ManifestPath(path)); err != nil {
		return nil, err
	}

	logger.Info("Index built", "path", path, "docs", total, "model", opts.Model, "tokens", opts.Tokens)
	return &Handle{
		index:    index,
		path:     path,
		schema:   schema,
		manifest: manifest,
		metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// Open reopens an index built by Build.
func Open(path string, metrics *telemetry.Metrics) (*Handle, error) {
	manifest, err := LoadManifest(ManifestPath(path))
	if err != nil {
		return nil, err
	}
	schema, ok := SchemaFor(manifest.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown index kind %q in manifest", manifest.Kind)
	}
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &Handle{
		index:    index,
		path:     path,
		schema:   schema,
		manifest: *manifest,
		metrics:  metrics,
		logger:   slog.Default().With("component", "engine", "kind", schema.Kind),
	}, nil
}

// Close releases the index.
func (h *Handle) Close() error {
	return h.index.Close()
}

// Path returns the index location.
func (h *Handle) Path() string {
	return h.path
}

// Kind returns the index kind.
func (h *Handle) Kind() string {
	return h.schema.Kind
}

// Schema returns the index schema.
func (h *Handle) Schema() Schema {
	return h.schema
}

// Manifest returns the build manifest.
func (h *Handle) Manifest() Manifest {
	return h.manifest
}

// SearchRequest is one free-text query.
type SearchRequest struct {
	QID    string
	Query  string
	Model  Model
	Size   int
	Fields []string
}

// Search runs a free-text query across the searchable fields. Hits are
// ordered by descending score then docno and carry 0-based ranks.
func (h *Handle) Search(ctx context.Context, req SearchRequest) (hits []domain.ScoredHit, err error) {
	start := time.Now()
	defer func() {
		h.metrics.EngineCall(h.schema.Kind, time.Since(start), err)
	}()

	if req.Model != "" && req.Model != h.manifest.Model {
		return nil, &domain.EngineError{
			Engine: h.schema.Kind,
			Op:     "search",
			QID:    req.QID,
			Err:    fmt.Errorf("index was built with %s, %s requested", h.manifest.Model, req.Model),
		}
	}
	size := req.Size
	if size <= 0 {
		size = DefaultDepth
	}

	sr := bleve.NewSearchRequest(h.buildQuery(req.Query))
	sr.Size = size
	sr.Fields = req.Fields
	sr.SortBy([]string{"-_score", "_id"})

	res, err := h.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, &domain.EngineError{Engine: h.schema.Kind, Op: "search", QID: req.QID, Err: err}
	}

	hits = make([]domain.ScoredHit, len(res.Hits))
	for i, m := range res.Hits {
		hits[i] = domain.ScoredHit{
			QID:   req.QID,
			DocNo: m.ID,
			Score: m.Score,
			Rank:  i,
			Meta:  h.meta(m.Fields),
		}
	}
	h.logger.Debug("Search complete", "qid", req.QID, "hits", len(hits), "total", res.Total)
	return hits, nil
}

func (h *Handle) buildQuery(text string) query.Query {
	fields := h.schema.Searchable()
	qs := make([]query.Query, len(fields))
	for i, f := range fields {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(f)
		qs[i] = mq
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// Lookup returns the stored fields of a document. A missing document is
// reported as an EngineError.
func (h *Handle) Lookup(ctx context.Context, docNo string, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		fields = h.schema.Names()
	}
	sr := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docNo}))
	sr.Size = 1
	sr.Fields = fields

	res, err := h.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, &domain.EngineError{Engine: h.schema.Kind, Op: "lookup", Err: err}
	}
	if len(res.Hits) == 0 {
		return nil, &domain.EngineError{Engine: h.schema.Kind, Op: "lookup", Err: fmt.Errorf("document %s not found", docNo)}
	}
	return h.meta(res.Hits[0].Fields), nil
}

// meta converts stored fields to bounded strings.
func (h *Handle) meta(fields map[string]interface{}) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for name, v := range fields {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if f, ok := h.schema.Field(name); ok {
			s = Truncate(s, f.MaxBytes)
		}
		out[name] = s
	}
	return out
}

// Term is one lexicon entry.
type Term struct {
	Term  string
	Count uint64
}

// Lexicon lists the indexed terms of a searchable field with their document
// frequencies, in term order.
func (h *Handle) Lexicon(field string) (terms []Term, err error) {
	dict, err := h.index.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	defer func() {
		if cerr := dict.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read lexicon: %w", err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, Term{Term: entry.Term, Count: entry.Count})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Term < terms[j].Term })
	return terms, nil
}

// Stats summarizes an index.
type Stats struct {
	Path     string   `json:"path"`
	Kind     string   `json:"kind"`
	DocCount uint64   `json:"doc_count"`
	Fields   []string `json:"fields"`
	Manifest Manifest `json:"manifest"`
}

// Stats reports the document count and build manifest.
func (h *Handle) Stats() (Stats, error) {
	n, err := h.index.DocCount()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count documents: %w", err)
	}
	return Stats{
		Path:     h.path,
		Kind:     h.schema.Kind,
		DocCount: n,
		Fields:   h.schema.Names(),
		Manifest: h.manifest,
	}, nil
}
