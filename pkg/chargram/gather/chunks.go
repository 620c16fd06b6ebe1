package gather

import (
	"fmt"
	"io"
	"strings"

	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// DefaultChunkSize is the number of input bytes handed to one scan task.
const DefaultChunkSize = 4096 * 4

// Boundary selects how windows near chunk edges are treated.
type Boundary int

const (
	// Overlap reads Back bytes before and Front bytes after each chunk so
	// that every base position sees its full window, exactly as a single
	// pass over the whole input would.
	Overlap Boundary = iota
	// Isolated scans each chunk on its own. Bases whose window crosses a
	// chunk edge are skipped, which undercounts near every boundary.
	Isolated
)

func (b Boundary) String() string {
	switch b {
	case Overlap:
		return "overlap"
	case Isolated:
		return "isolated"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// ParseBoundary maps "overlap" or "isolated" to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overlap":
		return Overlap, nil
	case "isolated":
		return Isolated, nil
	}
	return 0, fmt.Errorf("%w: unknown boundary %q", internalerr.ErrInvalidInput, s)
}

// Chunk is the byte range [Start, End) owned by one scan task.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Len returns End-Start.
func (c Chunk) Len() int64 { return c.End - c.Start }

// Plan splits size bytes into ceil(size/chunkSize) disjoint chunks.
func Plan(size, chunkSize int64) []Chunk {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}
	n := (size + chunkSize - 1) / chunkSize
	chunks := make([]Chunk, 0, n)
	for i := int64(0); i < n; i++ {
		end := (i + 1) * chunkSize
		if end > size {
			end = size
		}
		chunks = append(chunks, Chunk{Index: int(i), Start: i * chunkSize, End: end})
	}
	return chunks
}

// span is the bytes read for one chunk and the base positions within it
// that belong to the chunk.
type span struct {
	buf    []byte
	lo, hi int
	origin int64
}

// readChunk performs a positional read for c. With Overlap the read is
// widened by the window on both sides, clipped to the input.
func readChunk(r io.ReaderAt, size int64, c Chunk, win histogram.Window, boundary Boundary) (span, error) {
	from, to := c.Start, c.End
	if boundary == Overlap {
		from -= int64(win.Back)
		if from < 0 {
			from = 0
		}
		to += int64(win.Front)
		if to > size {
			to = size
		}
	}

	buf := make([]byte, to-from)
	n, err := r.ReadAt(buf, from)
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return span{}, fmt.Errorf("read chunk %d [%d, %d): %w", c.Index, from, to, err)
	}

	lo := int(c.Start - from)
	return span{buf: buf, lo: lo, hi: lo + int(c.Len()), origin: from}, nil
}
