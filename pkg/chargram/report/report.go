// Package report renders single fibers of a stored histogram as tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/cognicore/chargram/pkg/chargram/alphabet"
	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

// Row is one neighbor of a fiber.
type Row struct {
	Neighbor byte
	Count    uint64
	Value    float64
	HasValue bool
}

// Fiber collects the neighbor rows for base at the given signed offset. t
// may be nil when no normalized tensor is available.
func Fiber(h *histogram.Histogram, t *histogram.Tensor, alpha *alphabet.Alphabet, win histogram.Window, base byte, offset int) ([]Row, error) {
	b, ok := alpha.Index(base)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the alphabet", internalerr.ErrInvalidInput, base)
	}
	if offset < -win.Back || offset > win.Front {
		return nil, fmt.Errorf("%w: offset %d outside [-%d, %d]", internalerr.ErrInvalidInput, offset, win.Back, win.Front)
	}
	if t != nil && t.Shape() != h.Shape() {
		return nil, fmt.Errorf("%w: tensor %v, histogram %v", internalerr.ErrShapeMismatch, t.Shape(), h.Shape())
	}

	slot := win.Slot(offset)
	counts := h.Fiber(b, slot)
	rows := make([]Row, len(counts))
	for n, c := range counts {
		rows[n] = Row{Neighbor: alpha.Symbol(n), Count: c}
		if t != nil {
			rows[n].Value = t.At(b, n, slot)
			rows[n].HasValue = true
		}
	}
	return rows, nil
}

// Top returns the k rows with the highest counts, ties kept in alphabet
// order. k <= 0 returns every row, sorted.
func Top(rows []Row, k int) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// WriteTable renders rows to w.
func WriteTable(w io.Writer, rows []Row) {
	withValues := len(rows) > 0 && rows[0].HasValue

	header := []string{"NEIGHBOR", "COUNT"}
	if withValues {
		header = append(header, "NORMALIZED")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{Label(r.Neighbor), strconv.FormatUint(r.Count, 10)}
		if withValues {
			line = append(line, strconv.FormatFloat(r.Value, 'g', 6, 64))
		}
		data = append(data, line)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// Label renders a character for display, quoting whitespace and control
// bytes.
func Label(b byte) string {
	return strconv.QuoteRuneToASCII(rune(b))
}
