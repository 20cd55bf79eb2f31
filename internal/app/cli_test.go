package app

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/config"
)

func TestRegisterFlags(t *testing.T) {
	tests := []struct {
		name     string
		register func(*pflag.FlagSet)
		expected []string
	}{
		{
			name:     "index",
			register: RegisterIndexFlags,
			expected: []string{"log-level", "index-dir", "index-name", "tokens", "math-tokens", "model", MathFlag, MathPostFlag, LexiconFlag, StatsFlag, DebugFlag, QueryFlag},
		},
		{
			name:     "eval",
			register: RegisterEvalFlags,
			expected: []string{"top-k", config.NoPrimeFlag, "threshold", "format"},
		},
		{
			name:     "run",
			register: RegisterRunFlags,
			expected: []string{"top-k", config.NoPrimeFlag, "depth", "experiments", "runs-dir", "cache-type", "redis-addr", "rerank-url", "math-weight", "post-weight"},
		},
		{
			name:     "serve",
			register: RegisterServeFlags,
			expected: []string{"transport", "host", "port", "max-results", "auth-type", "auth-basic-username", "auth-basic-password", "auth-api-keys"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet(tt.name, pflag.ContinueOnError)
			tt.register(flags)
			for _, name := range tt.expected {
				if flags.Lookup(name) == nil {
					t.Errorf("Expected flag %q to be registered", name)
				}
			}
		})
	}
}

func TestRegisterServeFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterServeFlags(flags)

	shorthandFlags := map[string]string{
		"host":                "H",
		"port":                "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterRunFlags_OverrideSettings(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterRunFlags(flags)

	args := []string{"--top-k", "10", "--no-prime", "--depth", "50", "--math-weight", "0.5", "--cache-type", "dir", "--cache-dir", t.TempDir()}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("LoadSettingsWithFlags failed: %v", err)
	}
	if settings.Run.TopK != 10 {
		t.Errorf("TopK = %d, want 10", settings.Run.TopK)
	}
	if settings.Run.Prime {
		t.Error("Prime = true, want false")
	}
	if settings.Run.Depth != 50 {
		t.Errorf("Depth = %d, want 50", settings.Run.Depth)
	}
	if settings.Run.MathWeight != 0.5 {
		t.Errorf("MathWeight = %v, want 0.5", settings.Run.MathWeight)
	}
	if settings.Cache.Type != "dir" {
		t.Errorf("Cache.Type = %q, want dir", settings.Cache.Type)
	}
	if err := config.ValidateSettings(settings); err != nil {
		t.Errorf("ValidateSettings failed: %v", err)
	}
}

func TestIndexArgsFromFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterIndexFlags(flags)
	if err := flags.Parse([]string{"--mathpost", "-s", "-q", "sqrt 2", "-q", "proof"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	args := IndexArgsFromFlags("posts.xml", flags)
	if args.Path != "posts.xml" || !args.MathPost || !args.Stats || args.Lexicon || args.Math {
		t.Errorf("args = %+v", args)
	}
	if len(args.Queries) != 2 || args.Queries[0] != "sqrt 2" {
		t.Errorf("Queries = %v", args.Queries)
	}
}

func TestIndexArgs_Kinds(t *testing.T) {
	tests := []struct {
		name string
		args IndexArgs
		want string
	}{
		{name: "default", args: IndexArgs{}, want: "post"},
		{name: "math", args: IndexArgs{Math: true}, want: "math"},
		{name: "mathpost", args: IndexArgs{MathPost: true}, want: "post,math"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ""
			for i, k := range tt.args.kinds() {
				if i > 0 {
					got += ","
				}
				got += k
			}
			if got != tt.want {
				t.Errorf("kinds() = %q, want %q", got, tt.want)
			}
		})
	}
}
