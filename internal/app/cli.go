package app

import (
	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/config"
)

// Local flags of the index command. They select what a single invocation
// builds and prints and have no settings key.
const (
	MathFlag     = "math"
	MathPostFlag = "mathpost"
	LexiconFlag  = "lexicon"
	StatsFlag    = "stats"
	DebugFlag    = "debug"
	QueryFlag    = "query"
)

// RegisterCommonFlags registers the flags accepted by every command
func RegisterCommonFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("index-dir", "", "Directory holding the indexes")
	flags.StringP("index-name", "n", "", "Corpus name used to derive index paths")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address")
}

// RegisterIndexFlags registers the flags of the index command
func RegisterIndexFlags(flags *pflag.FlagSet) {
	RegisterCommonFlags(flags)
	flags.StringP("tokens", "t", "", "Token pipeline of the post index ('' disables stopwords and stemming)")
	flags.String("math-tokens", "", "Token pipeline of the formula index")
	flags.String("model", "", "Weighting model: BM25 or TF_IDF")
	flags.Int("batch-size", 0, "Documents per index batch")
	flags.Int("workers", 0, "Concurrent normalizers")

	flags.BoolP(MathFlag, "m", false, "Build only the formula index")
	flags.Bool(MathPostFlag, false, "Build the post and formula indexes")
	flags.BoolP(LexiconFlag, "l", false, "Print the lexicon of each searchable field")
	flags.BoolP(StatsFlag, "s", false, "Print collection statistics")
	flags.BoolP(DebugFlag, "d", false, "Print every normalized post")
	flags.StringArrayP(QueryFlag, "q", nil, "Test query to run against each built index (repeatable)")
}

// RegisterEvalFlags registers the flags shared by commands that evaluate hits
func RegisterEvalFlags(flags *pflag.FlagSet) {
	RegisterCommonFlags(flags)
	flags.IntP("top-k", "k", 0, "Number of hits evaluated per query")
	flags.Bool(config.NoPrimeFlag, false, "Evaluate all hits instead of assessed hits only")
	flags.Int("threshold", 0, "Minimum grade counted as relevant (0-3)")
	flags.StringP("format", "f", "", "Report format: table or json")
}

// RegisterRunFlags registers the flags of the run command
func RegisterRunFlags(flags *pflag.FlagSet) {
	RegisterEvalFlags(flags)
	flags.String("model", "", "Weighting model: BM25 or TF_IDF")
	flags.Int("depth", 0, "Hits retrieved per engine and query")
	flags.IntP("concurrency", "c", 0, "Topics evaluated concurrently")
	flags.Float64("math-weight", 0, "Weight of the formula list in the default interpolation")
	flags.Float64("post-weight", 0, "Weight of the post list in the default interpolation")
	flags.String("runs-dir", "", "Write one TREC run file per experiment into this directory")
	flags.StringP("experiments", "e", "", "YAML file of experiment definitions")

	flags.String("cache-type", "", "Ranked-list cache: none, dir or redis")
	flags.String("cache-dir", "", "Directory of the dir cache")
	flags.String("redis-addr", "", "Redis address of the redis cache")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.Duration("redis-ttl", 0, "Expiry of cached lists in redis")

	flags.String("rerank-url", "", "Scoring service of the http reranker")
	flags.Duration("rerank-timeout", 0, "Timeout of one scoring request")
	flags.Float64("rerank-rate", 0, "Scoring requests per second (0 is unlimited)")
	flags.Int("rerank-burst", 0, "Scoring request burst")
}

// RegisterServeFlags registers the flags of the serve command
func RegisterServeFlags(flags *pflag.FlagSet) {
	RegisterCommonFlags(flags)
	flags.String("model", "", "Weighting model: BM25 or TF_IDF")
	flags.Int("depth", 0, "Hits retrieved per engine and query")
	flags.Float64("math-weight", 0, "Weight of the formula list")
	flags.Float64("post-weight", 0, "Weight of the post list")
	flags.Int("max-results", 0, "Maximum results returned by search_posts")
	flags.String("transport", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
}
