package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// Dataset names inside a container.
const (
	DatasetCounts       = "absolute_data"
	DatasetLegacyCounts = "results"
	DatasetNormalized   = "normalized_data"
)

// Attribute keys attached to every dataset.
const (
	AttrOffsetBack      = "offset_back"
	AttrOffsetFront     = "offset_front"
	AttrAcceptableTypes = "acceptable_types"
	AttrRunID           = "run_id"
	AttrNormalizer      = "normalizer"
)

// Container persists the raw histogram and its normalized tensor together
// with their scalar attributes.
type Container interface {
	Close() error

	// WriteCounts stores h as absolute_data, replacing any previous copy
	// and removing normalized_data derived from it.
	WriteCounts(ctx context.Context, h *histogram.Histogram, attrs Attrs) error
	// ReadCounts loads absolute_data, falling back to the legacy results name.
	ReadCounts(ctx context.Context) (*histogram.Histogram, Attrs, error)

	// WriteNormalized stores t as normalized_data. Re-running overwrites the
	// dataset and upserts its attributes.
	WriteNormalized(ctx context.Context, t *histogram.Tensor, attrs Attrs) error
	ReadNormalized(ctx context.Context) (*histogram.Tensor, Attrs, error)

	// Datasets lists stored dataset names.
	Datasets(ctx context.Context) ([]string, error)
}

// Attrs holds the scalar attributes of a dataset as strings.
type Attrs map[string]string

// NewAttrs builds the standard attribute set for an alphabet and window.
func NewAttrs(alpha *alphabet.Alphabet, win histogram.Window) Attrs {
	return Attrs{
		AttrOffsetBack:      strconv.Itoa(win.Back),
		AttrOffsetFront:     strconv.Itoa(win.Front),
		AttrAcceptableTypes: alpha.String(),
	}
}

// Clone returns a copy of a.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Window decodes offset_back and offset_front.
func (a Attrs) Window() (histogram.Window, error) {
	back, err := a.uint(AttrOffsetBack)
	if err != nil {
		return histogram.Window{}, err
	}
	front, err := a.uint(AttrOffsetFront)
	if err != nil {
		return histogram.Window{}, err
	}
	return histogram.Window{Back: back, Front: front}, nil
}

// Alphabet decodes acceptable_types.
func (a Attrs) Alphabet() (*alphabet.Alphabet, error) {
	s, ok := a[AttrAcceptableTypes]
	if !ok {
		return nil, fmt.Errorf("attribute %s: %w", AttrAcceptableTypes, internalerr.ErrNotFound)
	}
	alpha, err := alphabet.New([]rune(s))
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", AttrAcceptableTypes, err)
	}
	return alpha, nil
}

// Validate checks that the three required attributes are present and agree
// with the given shape.
func (a Attrs) Validate(shape [3]int) error {
	win, err := a.Window()
	if err != nil {
		return err
	}
	alpha, err := a.Alphabet()
	if err != nil {
		return err
	}
	want := [3]int{alpha.Len(), alpha.Len(), win.Width()}
	if shape != want {
		return fmt.Errorf("%w: dataset shape %v, attributes imply %v", internalerr.ErrShapeMismatch, shape, want)
	}
	return nil
}

func (a Attrs) uint(key string) (int, error) {
	s, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("attribute %s: %w", key, internalerr.ErrNotFound)
	}
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w: %v", key, internalerr.ErrInvalidInput, err)
	}
	return int(v), nil
}
