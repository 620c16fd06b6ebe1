// Package scan slides a co-occurrence window over a single chunk of input.
// Functions here are pure: they read the buffer and alphabet and write only
// to the histogram or slice they return.
package scan

import (
	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
)

// Count adds co-occurrence counts for base positions i in [lo, hi) of buf
// into dst. A position is only considered when its full window fits inside
// buf; the base and every neighbor must be accepted for a cell to count.
// The offset-zero slot is never incremented.
func Count(buf []byte, lo, hi int, alpha *alphabet.Alphabet, win histogram.Window, dst *histogram.Histogram) {
	lo, hi = clampBases(len(buf), lo, hi, win)

	for i := lo; i < hi; i++ {
		base, ok := alpha.Index(buf[i])
		if !ok {
			continue
		}
		for o := -win.Back; o <= win.Front; o++ {
			if o == 0 {
				continue
			}
			neighbor, ok := alpha.Index(buf[i+o])
			if !ok {
				continue
			}
			dst.Inc(base, neighbor, o+win.Back)
		}
	}
}

// CountChunk scans the whole of buf into a fresh partial histogram.
func CountChunk(buf []byte, alpha *alphabet.Alphabet, win histogram.Window) *histogram.Histogram {
	h := histogram.New(alpha.Len(), win.Width())
	Count(buf, 0, len(buf), alpha, win, h)
	return h
}

// Context is one window of characters centered on an occurrence of Target.
type Context struct {
	Target byte
	Pos    int64 // absolute byte offset of the center character
	Chars  []byte
}

// Contexts collects the windows centered on any of targets for base
// positions in [lo, hi) of buf. Only windows made entirely of accepted
// characters are kept. origin is the absolute file offset of buf[0].
func Contexts(buf []byte, lo, hi int, origin int64, alpha *alphabet.Alphabet, win histogram.Window, targets []byte) []Context {
	var wanted [256]bool
	for _, t := range targets {
		wanted[t] = true
	}

	lo, hi = clampBases(len(buf), lo, hi, win)

	var out []Context
	for i := lo; i < hi; i++ {
		if !wanted[buf[i]] {
			continue
		}
		window := buf[i-win.Back : i+win.Front+1]
		if !alpha.ContainsAll(window) {
			continue
		}
		chars := make([]byte, len(window))
		copy(chars, window)
		out = append(out, Context{Target: buf[i], Pos: origin + int64(i), Chars: chars})
	}
	return out
}

// clampBases narrows [lo, hi) to positions whose window fits in a buffer of
// length n.
func clampBases(n, lo, hi int, win histogram.Window) (int, int) {
	if lo < win.Back {
		lo = win.Back
	}
	if hi > n-win.Front {
		hi = n - win.Front
	}
	return lo, hi
}
