package engine

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveindex "github.com/blevesearch/bleve_index_api"
)

// Model is a term-weighting model, fixed when an index is built.
type Model string

// Supported weighting models.
const (
	ModelBM25  Model = "BM25"
	ModelTFIDF Model = "TF_IDF"
)

// ParseModel accepts a model name case-insensitively.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BM25":
		return ModelBM25, nil
	case "TF_IDF", "TFIDF", "TF-IDF":
		return ModelTFIDF, nil
	}
	return "", fmt.Errorf("unknown weighting model %q (expected BM25 or TF_IDF)", s)
}

// scoring returns the bleve scoring model name.
func (m Model) scoring() string {
	if m == ModelTFIDF {
		return bleveindex.TFIDFScoring
	}
	return bleveindex.BM25Scoring
}

// Token pipeline stages.
const (
	TokenStopwords     = "Stopwords"
	TokenPorterStemmer = "PorterStemmer"
)

// DefaultTokens is the token pipeline of the post index.
const DefaultTokens = TokenStopwords + "," + TokenPorterStemmer

const analyzerName = "mathfuse"

// ParseTokens turns a comma-separated pipeline spec into bleve token filter
// names. Lowercasing always runs first; an empty spec means lowercase only.
func ParseTokens(spec string) ([]string, error) {
	filters := []string{lowercase.Name}
	for _, part := range strings.Split(spec, ",") {
		switch part = strings.TrimSpace(part); {
		case part == "":
		case strings.EqualFold(part, TokenStopwords):
			filters = append(filters, en.StopName)
		case strings.EqualFold(part, TokenPorterStemmer):
			filters = append(filters, porter.Name)
		default:
			return nil, fmt.Errorf("unknown token stage %q (expected %s or %s)", part, TokenStopwords, TokenPorterStemmer)
		}
	}
	return filters, nil
}

// NewIndexMapping creates the bleve mapping for a schema.
func NewIndexMapping(schema Schema, tokens string, model Model) (mapping.IndexMapping, error) {
	filters, err := ParseTokens(tokens)
	if err != nil {
		return nil, err
	}

	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	}); err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	for _, f := range schema.Fields {
		fm := bleve.NewTextFieldMapping()
		fm.Store = true
		if f.Searchable {
			fm.Analyzer = analyzerName
		} else {
			fm.Index = false
			fm.IncludeInAll = false
			fm.IncludeTermVectors = false
		}
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = analyzerName
	im.ScoringModel = model.scoring()
	return im, nil
}
