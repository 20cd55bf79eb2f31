package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sha1n/mathfuse/internal/domain"
)

// HTTPConfig configures an HTTPScorer.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration

	// Rate is the number of requests per second; 0 disables pacing.
	Rate  float64
	Burst int

	// TextField is the stored field sent as candidate text.
	TextField string
}

// HTTPScorer delegates scoring to an external service.
type HTTPScorer struct {
	url       string
	client    *http.Client
	limiter   *rate.Limiter
	lookup    Lookup
	textField string
	logger    *slog.Logger
}

type scoreRequest struct {
	Query      string         `json:"query"`
	Candidates []candidateDoc `json:"candidates"`
}

type candidateDoc struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type scoreResponse struct {
	Results []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// NewHTTPScorer creates a scorer posting to cfg.URL. Candidate text is read
// through lookup.
func NewHTTPScorer(cfg HTTPConfig, lookup Lookup) *HTTPScorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	field := cfg.TextField
	if field == "" {
		field = domain.FieldText
	}
	return &HTTPScorer{
		url:       cfg.URL,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		lookup:    lookup,
		textField: field,
		logger:    slog.Default().With("component", "rerank"),
	}
}

// Name implements Scorer.
func (s *HTTPScorer) Name() string {
	return "http"
}

// Score implements Scorer. Candidates the service does not return are dropped.
func (s *HTTPScorer) Score(ctx context.Context, query string, candidates []domain.ScoredHit) ([]domain.ScoredHit, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	qid := candidates[0].QID
	fail := func(err error) error {
		return &domain.EngineError{Engine: s.Name(), Op: "rerank", QID: qid, Err: err}
	}

	req := scoreRequest{Query: query, Candidates: make([]candidateDoc, len(candidates))}
	for i, c := range candidates {
		meta, err := s.lookup.Lookup(ctx, c.DocNo, []string{s.textField})
		if err != nil {
			return nil, fail(err)
		}
		req.Candidates[i] = candidateDoc{ID: c.DocNo, Text: meta[s.textField], Score: c.Score}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fail(err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fail(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fail(fmt.Errorf("scoring service returned %s: %s", resp.Status, bytes.TrimSpace(msg)))
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fail(fmt.Errorf("failed to decode scoring response: %w", err))
	}

	byID := make(map[string]domain.ScoredHit, len(candidates))
	for _, c := range candidates {
		byID[c.DocNo] = c
	}
	out := make([]domain.ScoredHit, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		c, ok := byID[r.ID]
		if !ok {
			continue
		}
		delete(byID, r.ID)
		c.Score = r.Score
		out = append(out, c)
	}
	domain.RankScored(out)

	s.logger.Debug("Candidates rescored", "qid", qid, "candidates", len(candidates), "scored", len(out), "elapsed", time.Since(start))
	return out, nil
}
