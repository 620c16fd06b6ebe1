package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/gather"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
	"github.com/cognicore/chargram/pkg/chargram/normalize"
)

// Run modes.
const (
	ModeGather    = "gather"
	ModeExtract   = "extract"
	ModeNormalize = "normalize"
)

// Defaults used when a field is left out.
const (
	DefaultOffset = 4
	DefaultPrefix = "context"
)

// Run is the YAML run configuration.
type Run struct {
	Mode        string `yaml:"mode"`
	Alphabet    string `yaml:"alphabet"`
	OffsetBack  *int   `yaml:"offset_back"`
	OffsetFront *int   `yaml:"offset_front"`
	Workers     int    `yaml:"workers"`
	ChunkSize   int64  `yaml:"chunk_size"`
	Boundary    string `yaml:"boundary"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`

	// Extraction
	Targets string `yaml:"targets"`
	Prefix  string `yaml:"prefix"`
	Ordered bool   `yaml:"ordered"`

	// Normalization
	Normalizer string `yaml:"normalizer"`
}

// Default returns a run with every optional field filled in.
func Default() *Run {
	back, front := DefaultOffset, DefaultOffset
	return &Run{
		Mode:        ModeGather,
		OffsetBack:  &back,
		OffsetFront: &front,
		Workers:     runtime.NumCPU(),
		ChunkSize:   gather.DefaultChunkSize,
		Boundary:    gather.Overlap.String(),
		Prefix:      DefaultPrefix,
		Normalizer:  normalize.MinMax.String(),
	}
}

// Load reads a run configuration from a YAML file. Fields missing from the
// file keep their defaults.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	run := Default()
	if err := yaml.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	run.fillDefaults()
	return run, nil
}

func (r *Run) fillDefaults() {
	d := Default()
	if r.Mode == "" {
		r.Mode = d.Mode
	}
	if r.OffsetBack == nil {
		r.OffsetBack = d.OffsetBack
	}
	if r.OffsetFront == nil {
		r.OffsetFront = d.OffsetFront
	}
	if r.Workers <= 0 {
		r.Workers = d.Workers
	}
	if r.ChunkSize <= 0 {
		r.ChunkSize = d.ChunkSize
	}
	if r.Boundary == "" {
		r.Boundary = d.Boundary
	}
	if r.Prefix == "" {
		r.Prefix = d.Prefix
	}
	if r.Normalizer == "" {
		r.Normalizer = d.Normalizer
	}
}

// Validate checks the fields required by the configured mode.
func (r *Run) Validate() error {
	r.fillDefaults()

	if r.Output == "" {
		return fmt.Errorf("%w: output is required", internalerr.ErrInvalidConfig)
	}

	switch r.Mode {
	case ModeGather, ModeExtract:
		if r.Input == "" {
			return fmt.Errorf("%w: input is required for %s", internalerr.ErrInvalidConfig, r.Mode)
		}
		if _, err := r.BuildAlphabet(); err != nil {
			return err
		}
		if _, err := r.Window(); err != nil {
			return err
		}
		if _, err := gather.ParseBoundary(r.Boundary); err != nil {
			return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
		}
		if r.Mode == ModeExtract && len(r.TargetBytes()) == 0 {
			return fmt.Errorf("%w: extract needs at least one target", internalerr.ErrInvalidConfig)
		}
	case ModeNormalize:
		if _, err := normalize.ParsePolicy(r.Normalizer); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", internalerr.ErrInvalidConfig, r.Mode)
	}
	return nil
}

// BuildAlphabet parses the configured alphabet.
func (r *Run) BuildAlphabet() (*alphabet.Alphabet, error) {
	if strings.TrimSpace(r.Alphabet) == "" {
		return nil, fmt.Errorf("%w: alphabet is required", internalerr.ErrInvalidConfig)
	}
	alpha, err := alphabet.Parse(r.Alphabet)
	if err != nil {
		return nil, fmt.Errorf("%w: alphabet: %v", internalerr.ErrInvalidConfig, err)
	}
	return alpha, nil
}

// Window returns the configured window parameters.
func (r *Run) Window() (histogram.Window, error) {
	r.fillDefaults()
	win := histogram.Window{Back: *r.OffsetBack, Front: *r.OffsetFront}
	if err := win.Validate(); err != nil {
		return win, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return win, nil
}

// TargetBytes returns the extraction targets with duplicates removed. The
// same plain or comma separated forms as the alphabet are accepted.
func (r *Run) TargetBytes() []byte {
	if r.Targets == "" {
		return nil
	}
	alpha, err := alphabet.Parse(r.Targets)
	if err != nil {
		return nil
	}
	return alpha.Symbols()
}

// GatherOptions converts the run into scheduler options.
func (r *Run) GatherOptions() (gather.Options, error) {
	r.fillDefaults()
	boundary, err := gather.ParseBoundary(r.Boundary)
	if err != nil {
		return gather.Options{}, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return gather.Options{
		Workers:   r.Workers,
		ChunkSize: r.ChunkSize,
		Boundary:  boundary,
		Ordered:   r.Ordered,
	}, nil
}

// Policy returns the configured normalization policy.
func (r *Run) Policy() (normalize.Policy, error) {
	r.fillDefaults()
	return normalize.ParsePolicy(r.Normalizer)
}
