// Package normalize turns a co-occurrence histogram into comparable
// floating point statistics. Every policy works on one fiber at a time: the
// counts along the neighbor axis for a fixed (base, offset) pair.
//
// Degenerate fibers (zero range, zero sum, zero deviation) are not errors.
// The division is carried out anyway and the resulting NaN or Inf values are
// stored as they are.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// Policy identifies a normalization. The numeric values are stable and
// used on the command line and in stored metadata.
type Policy int

const (
	MinMax      Policy = 0 // (x - min) / (max - min)
	SumToOne    Policy = 1 // x / sum
	Center      Policy = 2 // x - mean
	DivideByMax Policy = 3 // x / max
	ZScore      Policy = 4 // (x - mean) / population stddev
)

var policyNames = map[Policy]string{
	MinMax:      "min-max",
	SumToOne:    "sum-to-one",
	Center:      "center",
	DivideByMax: "divide-by-max",
	ZScore:      "z-score",
}

// Policies lists every supported policy in id order.
func Policies() []Policy {
	return []Policy{MinMax, SumToOne, Center, DivideByMax, ZScore}
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Valid reports whether p is one of the five supported policies.
func (p Policy) Valid() bool {
	_, ok := policyNames[p]
	return ok
}

// ParsePolicy accepts a numeric id ("0".."4") or a policy name.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if id, err := strconv.Atoi(s); err == nil {
		p := Policy(id)
		if !p.Valid() {
			return 0, fmt.Errorf("%w: id %d", internalerr.ErrUnsupportedPolicy, id)
		}
		return p, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", internalerr.ErrUnsupportedPolicy, s)
}

// Apply returns a new tensor holding h normalized with policy. h is not
// modified.
func Apply(h *histogram.Histogram, policy Policy) (*histogram.Tensor, error) {
	fn, err := fiberFunc(policy)
	if err != nil {
		return nil, err
	}

	out := histogram.NewTensor(h.A, h.W)
	x := make([]float64, h.A)
	for base := 0; base < h.A; base++ {
		for slot := 0; slot < h.W; slot++ {
			for n := 0; n < h.A; n++ {
				x[n] = float64(h.At(base, n, slot))
			}
			fn(x)
			out.SetFiber(base, slot, x)
		}
	}
	return out, nil
}

// Fiber normalizes a single fiber in place.
func Fiber(x []float64, policy Policy) error {
	fn, err := fiberFunc(policy)
	if err != nil {
		return err
	}
	if len(x) > 0 {
		fn(x)
	}
	return nil
}

func fiberFunc(p Policy) (func([]float64), error) {
	switch p {
	case MinMax:
		return minMax, nil
	case SumToOne:
		return sumToOne, nil
	case Center:
		return center, nil
	case DivideByMax:
		return divideByMax, nil
	case ZScore:
		return zScore, nil
	}
	return nil, fmt.Errorf("%w: id %d", internalerr.ErrUnsupportedPolicy, int(p))
}

func minMax(x []float64) {
	lo, hi := floats.Min(x), floats.Max(x)
	span := hi - lo
	for i := range x {
		x[i] = (x[i] - lo) / span
	}
}

func sumToOne(x []float64) {
	sum := floats.Sum(x)
	for i := range x {
		x[i] /= sum
	}
}

func center(x []float64) {
	floats.AddConst(-stat.Mean(x, nil), x)
}

func divideByMax(x []float64) {
	hi := floats.Max(x)
	for i := range x {
		x[i] /= hi
	}
}

// zScore uses the population standard deviation sqrt(mean((x-mean)^2)).
func zScore(x []float64) {
	mean, std := stat.PopMeanStdDev(x, nil)
	for i := range x {
		x[i] = (x[i] - mean) / std
	}
}
