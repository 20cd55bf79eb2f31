package experiment

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine names a source may retrieve from.
const (
	EnginePost = "post"
	EngineMath = "math"
)

// Reranker names.
const (
	RerankVotes = "votes"
	RerankHTTP  = "http"
)

// Default experiment names.
const (
	BaselineName      = "Baseline"
	InterpolationName = "BM25 to Linear Interpolation"
)

// Source is one weighted input of an experiment.
type Source struct {
	Engine      string  `yaml:"engine"`
	Weight      float64 `yaml:"weight"`
	Rerank      string  `yaml:"rerank,omitempty"`
	RerankDepth int     `yaml:"rerank_depth,omitempty"`
}

// Label names the source in generated experiment names.
func (s Source) Label() string {
	if s.Rerank == "" {
		return s.Engine
	}
	return s.Engine + "+" + s.Rerank
}

// Experiment is a named fusion of sources.
type Experiment struct {
	Name    string   `yaml:"name"`
	Sources []Source `yaml:"sources"`
}

// Sweep generates experiments trading weight between two sources: for
// w = 0..Total, A is weighted w and B Total-w.
type Sweep struct {
	Prefix string `yaml:"prefix"`
	A      Source `yaml:"a"`
	B      Source `yaml:"b"`
	Total  int    `yaml:"total"`
}

// Expand returns the generated experiments.
func (s Sweep) Expand() []Experiment {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "sweep"
	}
	out := make([]Experiment, 0, s.Total+1)
	for w := 0; w <= s.Total; w++ {
		a, b := s.A, s.B
		a.Weight = float64(w)
		b.Weight = float64(s.Total - w)
		out = append(out, Experiment{
			Name:    fmt.Sprintf("%s-%s_%d-%s_%d", prefix, a.Label(), w, b.Label(), s.Total-w),
			Sources: []Source{a, b},
		})
	}
	return out
}

// Definitions is the content of an experiment file.
type Definitions struct {
	Baseline    string       `yaml:"baseline,omitempty"`
	Experiments []Experiment `yaml:"experiments"`
	Sweep       *Sweep       `yaml:"sweep,omitempty"`
}

// Defaults returns the post-only baseline and the two-source interpolation.
func Defaults(mathWeight, postWeight float64) *Definitions {
	return &Definitions{
		Baseline: BaselineName,
		Experiments: []Experiment{
			{Name: BaselineName, Sources: []Source{{Engine: EnginePost, Weight: 1}}},
			{Name: InterpolationName, Sources: []Source{
				{Engine: EnginePost, Weight: postWeight},
				{Engine: EngineMath, Weight: mathWeight},
			}},
		},
	}
}

// LoadFile reads and validates an experiment file.
func LoadFile(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiments file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var defs Definitions
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("parsing experiments file %s: %w", path, err)
	}
	if err := defs.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &defs, nil
}

// All returns the explicit experiments followed by the sweep's.
func (d *Definitions) All() []Experiment {
	out := append([]Experiment(nil), d.Experiments...)
	if d.Sweep != nil {
		out = append(out, d.Sweep.Expand()...)
	}
	return out
}

// BaselineExperiment returns the configured baseline, or the first experiment.
func (d *Definitions) BaselineExperiment() string {
	if d.Baseline != "" {
		return d.Baseline
	}
	if all := d.All(); len(all) > 0 {
		return all[0].Name
	}
	return ""
}

// Validate checks names, engines, rerankers and weights.
func (d *Definitions) Validate() error {
	all := d.All()
	if len(all) == 0 {
		return errors.New("no experiments defined")
	}
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		if strings.TrimSpace(e.Name) == "" {
			return errors.New("experiment name cannot be empty")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate experiment name %q", e.Name)
		}
		seen[e.Name] = true
		if len(e.Sources) == 0 {
			return fmt.Errorf("experiment %q has no sources", e.Name)
		}
		for _, s := range e.Sources {
			if err := s.validate(); err != nil {
				return fmt.Errorf("experiment %q: %w", e.Name, err)
			}
		}
	}
	if d.Sweep != nil && d.Sweep.Total <= 0 {
		return errors.New("sweep total must be positive")
	}
	if d.Baseline != "" && !seen[d.Baseline] {
		return fmt.Errorf("baseline %q is not a defined experiment", d.Baseline)
	}
	return nil
}

func (s Source) validate() error {
	switch s.Engine {
	case EnginePost, EngineMath:
	default:
		return fmt.Errorf("unknown engine %q (expected %s or %s)", s.Engine, EnginePost, EngineMath)
	}
	switch s.Rerank {
	case "", RerankVotes, RerankHTTP:
	default:
		return fmt.Errorf("unknown reranker %q", s.Rerank)
	}
	if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
		return fmt.Errorf("invalid weight %v", s.Weight)
	}
	if s.RerankDepth < 0 {
		return errors.New("rerank_depth cannot be negative")
	}
	return nil
}
