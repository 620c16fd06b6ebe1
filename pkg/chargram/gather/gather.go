// Package gather splits an input into chunks, scans them on a bounded worker
// pool and folds the per-chunk results on a single consumer goroutine.
package gather

import (
	"context"
	"io"
	"sort"

	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/scan"
)

// CountStats summarizes a histogram run.
type CountStats struct {
	Chunks int
}

// Counts builds the co-occurrence histogram of the first size bytes of r.
// Workers scan private partial histograms; only the calling goroutine
// touches the returned histogram. The result does not depend on worker
// count or arrival order.
func Counts(ctx context.Context, r io.ReaderAt, size int64, alpha *alphabet.Alphabet, win histogram.Window, opts Options) (*histogram.Histogram, CountStats, error) {
	var stats CountStats
	if err := win.Validate(); err != nil {
		return nil, stats, err
	}

	total := histogram.New(alpha.Len(), win.Width())
	chunks := Plan(size, opts.chunkSize())
	stats.Chunks = len(chunks)

	task := func(_ context.Context, c Chunk) (*histogram.Histogram, error) {
		s, err := readChunk(r, size, c, win, opts.Boundary)
		if err != nil {
			return nil, err
		}
		partial := histogram.New(alpha.Len(), win.Width())
		scan.Count(s.buf, s.lo, s.hi, alpha, win, partial)
		return partial, nil
	}

	if err := fanIn(ctx, chunks, opts, task, total.Add); err != nil {
		return nil, stats, err
	}
	return total, stats, nil
}

// ContextWriter receives batches of context windows. Calls are never
// concurrent.
type ContextWriter interface {
	WriteContexts(batch []scan.Context) error
}

// ExtractStats summarizes an extraction run.
type ExtractStats struct {
	Chunks  int
	Windows int
	// PerTarget counts retained windows by center character.
	PerTarget map[byte]int
}

// Contexts streams every accepted window centered on one of targets to w.
// Batches are written in chunk arrival order, which need not match file
// order, unless opts.Ordered is set.
func Contexts(ctx context.Context, r io.ReaderAt, size int64, alpha *alphabet.Alphabet, win histogram.Window, targets []byte, w ContextWriter, opts Options) (ExtractStats, error) {
	stats := ExtractStats{PerTarget: make(map[byte]int)}
	if err := win.Validate(); err != nil {
		return stats, err
	}

	chunks := Plan(size, opts.chunkSize())
	stats.Chunks = len(chunks)

	task := func(_ context.Context, c Chunk) ([]scan.Context, error) {
		s, err := readChunk(r, size, c, win, opts.Boundary)
		if err != nil {
			return nil, err
		}
		return scan.Contexts(s.buf, s.lo, s.hi, s.origin, alpha, win, targets), nil
	}

	var held []scan.Context
	consume := func(batch []scan.Context) error {
		for _, c := range batch {
			stats.PerTarget[c.Target]++
		}
		stats.Windows += len(batch)
		if opts.Ordered {
			held = append(held, batch...)
			return nil
		}
		if len(batch) == 0 {
			return nil
		}
		return w.WriteContexts(batch)
	}

	if err := fanIn(ctx, chunks, opts, task, consume); err != nil {
		return stats, err
	}

	if opts.Ordered && len(held) > 0 {
		sort.Slice(held, func(i, j int) bool { return held[i].Pos < held[j].Pos })
		if err := w.WriteContexts(held); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
