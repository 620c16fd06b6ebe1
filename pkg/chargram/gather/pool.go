package gather

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Options tunes a gather or extract run.
type Options struct {
	// Workers bounds the number of chunks scanned concurrently.
	// Zero means runtime.NumCPU().
	Workers int
	// ChunkSize is the number of bytes per chunk. Zero means DefaultChunkSize.
	ChunkSize int64
	Boundary  Boundary
	// Ordered makes extraction write windows sorted by file position instead
	// of chunk arrival order. All windows are held in memory until the end.
	Ordered bool
	// Progress, if set, is called from the aggregating goroutine after each
	// chunk result is consumed.
	Progress func(done, total int)
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

func (o Options) chunkSize() int64 {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// fanIn runs task once per chunk on a pool of at most workers goroutines and
// feeds every result to consume from a single goroutine. It returns only after
// every task has finished and the results channel is closed.
func fanIn[T any](
	ctx context.Context,
	chunks []Chunk,
	opts Options,
	task func(context.Context, Chunk) (T, error),
	consume func(T) error,
) error {
	results := make(chan T)
	dispatched := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	go func() {
		for _, c := range chunks {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				v, err := task(gctx, c)
				if err != nil {
					return err
				}
				select {
				case results <- v:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		dispatched <- g.Wait()
		close(results)
	}()

	var (
		received   int
		consumeErr error
	)
	for v := range results {
		received++
		if consumeErr != nil {
			continue
		}
		if err := consume(v); err != nil {
			consumeErr = err
			continue
		}
		if opts.Progress != nil {
			opts.Progress(received, len(chunks))
		}
	}

	if err := <-dispatched; err != nil {
		return err
	}
	if consumeErr != nil {
		return consumeErr
	}
	if received != len(chunks) {
		return fmt.Errorf("received %d chunk results, dispatched %d", received, len(chunks))
	}
	return nil
}
