package chargram

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/gather"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
	"github.com/cognicore/chargram/pkg/chargram/normalize"
	"github.com/cognicore/chargram/pkg/chargram/report"
	"github.com/cognicore/chargram/pkg/chargram/sink"
	"github.com/cognicore/chargram/pkg/chargram/store"
)

// Engine ties the scanner, normalizer and a persisted container together.
type Engine struct {
	store store.Container

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures an Engine
type Options struct {
	Store store.Container
}

// New creates an Engine backed by opts.Store.
func New(opts Options) *Engine {
	return &Engine{
		store:   opts.Store,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Close closes the underlying container.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) newRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

// GatherRequest describes a histogram run over one input file.
type GatherRequest struct {
	Input    string
	Alphabet *alphabet.Alphabet
	Window   histogram.Window
	Options  gather.Options
}

// GatherResult is what a histogram run stored.
type GatherResult struct {
	RunID     string
	Bytes     int64
	Chunks    int
	Histogram *histogram.Histogram
}

// Gather counts co-occurrences in req.Input and stores the histogram as
// absolute_data.
func (e *Engine) Gather(ctx context.Context, req GatherRequest) (GatherResult, error) {
	f, size, err := openInput(req.Input)
	if err != nil {
		return GatherResult{}, err
	}
	defer f.Close()

	h, stats, err := gather.Counts(ctx, f, size, req.Alphabet, req.Window, req.Options)
	if err != nil {
		return GatherResult{}, fmt.Errorf("gather %s: %w", req.Input, err)
	}

	res := GatherResult{
		RunID:     e.newRunID(),
		Bytes:     size,
		Chunks:    stats.Chunks,
		Histogram: h,
	}
	attrs := store.NewAttrs(req.Alphabet, req.Window)
	attrs[store.AttrRunID] = res.RunID
	if err := e.store.WriteCounts(ctx, h, attrs); err != nil {
		return GatherResult{}, fmt.Errorf("write %s: %w", store.DatasetCounts, err)
	}
	return res, nil
}

// NormalizeResult is what a normalization run stored.
type NormalizeResult struct {
	RunID  string
	Policy normalize.Policy
	Tensor *histogram.Tensor
	Attrs  store.Attrs
}

// Normalize reads the stored histogram, applies policy and writes the result
// as normalized_data, replacing any earlier normalization.
func (e *Engine) Normalize(ctx context.Context, policy normalize.Policy) (NormalizeResult, error) {
	if !policy.Valid() {
		return NormalizeResult{}, fmt.Errorf("%w: id %d", internalerr.ErrUnsupportedPolicy, int(policy))
	}

	h, attrs, err := e.store.ReadCounts(ctx)
	if err != nil {
		return NormalizeResult{}, err
	}
	if err := attrs.Validate(h.Shape()); err != nil {
		return NormalizeResult{}, fmt.Errorf("dataset %s: %w", store.DatasetCounts, err)
	}

	t, err := normalize.Apply(h, policy)
	if err != nil {
		return NormalizeResult{}, err
	}

	out := store.Attrs{
		store.AttrOffsetBack:      attrs[store.AttrOffsetBack],
		store.AttrOffsetFront:     attrs[store.AttrOffsetFront],
		store.AttrAcceptableTypes: attrs[store.AttrAcceptableTypes],
		store.AttrNormalizer:      policy.String(),
		store.AttrRunID:           e.newRunID(),
	}
	if err := e.store.WriteNormalized(ctx, t, out); err != nil {
		return NormalizeResult{}, fmt.Errorf("write %s: %w", store.DatasetNormalized, err)
	}
	return NormalizeResult{RunID: out[store.AttrRunID], Policy: policy, Tensor: t, Attrs: out}, nil
}

// InspectRequest selects one fiber of the stored histogram.
type InspectRequest struct {
	Base   byte
	Offset int
	Top    int
}

// Inspect returns the neighbor rows of one fiber, with normalized values
// when the container holds them.
func (e *Engine) Inspect(ctx context.Context, req InspectRequest) ([]report.Row, error) {
	h, attrs, err := e.store.ReadCounts(ctx)
	if err != nil {
		return nil, err
	}
	if err := attrs.Validate(h.Shape()); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", store.DatasetCounts, err)
	}
	alpha, err := attrs.Alphabet()
	if err != nil {
		return nil, err
	}
	win, err := attrs.Window()
	if err != nil {
		return nil, err
	}

	t, _, err := e.store.ReadNormalized(ctx)
	if errors.Is(err, internalerr.ErrNotFound) {
		t = nil
	} else if err != nil {
		return nil, err
	}

	rows, err := report.Fiber(h, t, alpha, win, req.Base, req.Offset)
	if err != nil {
		return nil, err
	}
	return report.Top(rows, req.Top), nil
}

// ExtractRequest describes a context-window run.
type ExtractRequest struct {
	Input     string
	OutputDir string
	Prefix    string
	Alphabet  *alphabet.Alphabet
	Window    histogram.Window
	Targets   []byte
	Options   gather.Options
}

// Extract writes every accepted window around each target to
// <OutputDir>/<Prefix>_<target>.csv, appending to existing files.
func Extract(ctx context.Context, req ExtractRequest) (gather.ExtractStats, error) {
	f, size, err := openInput(req.Input)
	if err != nil {
		return gather.ExtractStats{}, err
	}
	defer f.Close()

	out, err := sink.OpenDir(req.OutputDir, req.Prefix, req.Targets)
	if err != nil {
		return gather.ExtractStats{}, err
	}

	stats, err := gather.Contexts(ctx, f, size, req.Alphabet, req.Window, req.Targets, out, req.Options)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return stats, fmt.Errorf("extract %s: %w", req.Input, err)
	}
	return stats, nil
}

func openInput(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat input %s: %w", path, err)
	}
	return f, info.Size(), nil
}
