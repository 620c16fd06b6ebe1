package histogram

import (
	"fmt"

	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// Window defines how many characters behind and ahead of a base character
// are examined.
type Window struct {
	Back  int
	Front int
}

// Width returns the number of offset slots, Back+Front+1.
func (w Window) Width() int { return w.Back + w.Front + 1 }

// Slot maps a signed relative offset to its non-negative slot.
func (w Window) Slot(offset int) int { return offset + w.Back }

// Offset is the inverse of Slot.
func (w Window) Offset(slot int) int { return slot - w.Back }

// Validate rejects negative window sizes.
func (w Window) Validate() error {
	if w.Back < 0 || w.Front < 0 {
		return fmt.Errorf("%w: window back=%d front=%d must be non-negative", internalerr.ErrInvalidInput, w.Back, w.Front)
	}
	return nil
}

// Histogram is a dense [A, A, W] array of co-occurrence counters indexed by
// (base, neighbor, slot), stored row-major with the slot varying fastest.
type Histogram struct {
	A      int
	W      int
	Counts []uint64
}

// New returns a zero-filled histogram for an alphabet of size a and a
// window of width w.
func New(a, w int) *Histogram {
	return &Histogram{A: a, W: w, Counts: make([]uint64, a*a*w)}
}

// FromCounts wraps an existing flat counter slice, checking its length.
func FromCounts(a, w int, counts []uint64) (*Histogram, error) {
	if len(counts) != a*a*w {
		return nil, fmt.Errorf("%w: %d counts for shape [%d %d %d]", internalerr.ErrShapeMismatch, len(counts), a, a, w)
	}
	return &Histogram{A: a, W: w, Counts: counts}, nil
}

// Shape returns [A, A, W].
func (h *Histogram) Shape() [3]int { return [3]int{h.A, h.A, h.W} }

func (h *Histogram) offset(base, neighbor, slot int) int {
	return (base*h.A+neighbor)*h.W + slot
}

// At returns the count at (base, neighbor, slot).
func (h *Histogram) At(base, neighbor, slot int) uint64 {
	return h.Counts[h.offset(base, neighbor, slot)]
}

// Inc increments the count at (base, neighbor, slot).
func (h *Histogram) Inc(base, neighbor, slot int) {
	h.Counts[h.offset(base, neighbor, slot)]++
}

// Add folds other into h by element-wise addition.
func (h *Histogram) Add(other *Histogram) error {
	if other.A != h.A || other.W != h.W {
		return fmt.Errorf("%w: cannot add %v into %v", internalerr.ErrShapeMismatch, other.Shape(), h.Shape())
	}
	for i, c := range other.Counts {
		h.Counts[i] += c
	}
	return nil
}

// Fiber returns the counts along the neighbor axis for a fixed (base, slot).
func (h *Histogram) Fiber(base, slot int) []uint64 {
	out := make([]uint64, h.A)
	for n := 0; n < h.A; n++ {
		out[n] = h.At(base, n, slot)
	}
	return out
}

// Total returns the sum of all counters.
func (h *Histogram) Total() uint64 {
	var sum uint64
	for _, c := range h.Counts {
		sum += c
	}
	return sum
}

// Equal reports whether h and other have the same shape and counts.
func (h *Histogram) Equal(other *Histogram) bool {
	if other == nil || h.A != other.A || h.W != other.W {
		return false
	}
	for i := range h.Counts {
		if h.Counts[i] != other.Counts[i] {
			return false
		}
	}
	return true
}

// Tensor is a float64 array with the same layout as Histogram.
type Tensor struct {
	A      int
	W      int
	Values []float64
}

// NewTensor returns a zero-filled tensor of shape [a, a, w].
func NewTensor(a, w int) *Tensor {
	return &Tensor{A: a, W: w, Values: make([]float64, a*a*w)}
}

// TensorFromValues wraps an existing flat value slice, checking its length.
func TensorFromValues(a, w int, values []float64) (*Tensor, error) {
	if len(values) != a*a*w {
		return nil, fmt.Errorf("%w: %d values for shape [%d %d %d]", internalerr.ErrShapeMismatch, len(values), a, a, w)
	}
	return &Tensor{A: a, W: w, Values: values}, nil
}

// Shape returns [A, A, W].
func (t *Tensor) Shape() [3]int { return [3]int{t.A, t.A, t.W} }

// At returns the value at (base, neighbor, slot).
func (t *Tensor) At(base, neighbor, slot int) float64 {
	return t.Values[(base*t.A+neighbor)*t.W+slot]
}

// Fiber returns the values along the neighbor axis for a fixed (base, slot).
func (t *Tensor) Fiber(base, slot int) []float64 {
	out := make([]float64, t.A)
	for n := 0; n < t.A; n++ {
		out[n] = t.At(base, n, slot)
	}
	return out
}

// SetFiber writes values along the neighbor axis for a fixed (base, slot).
func (t *Tensor) SetFiber(base, slot int, values []float64) {
	for n, v := range values {
		t.Values[(base*t.A+n)*t.W+slot] = v
	}
}
