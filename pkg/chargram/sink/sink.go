// Package sink writes extracted context windows as comma separated rows:
// one row per window, the characters in order followed by a trailing
// separator ("a,b,a,").
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cognicore/chargram/pkg/chargram/scan"
)

// CSV writes windows to a single stream.
type CSV struct {
	w      *csv.Writer
	record []string
	rows   int
}

// NewCSV wraps w. Separator and quote characters inside a window are quoted
// by the csv encoder so rows stay parseable.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Write appends one window as a row.
func (c *CSV) Write(window []byte) error {
	c.record = c.record[:0]
	for _, b := range window {
		c.record = append(c.record, string(rune(b)))
	}
	c.record = append(c.record, "")
	if err := c.w.Write(c.record); err != nil {
		return err
	}
	c.rows++
	return nil
}

// Flush writes any buffered rows to the underlying writer.
func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// Rows returns the number of rows written so far.
func (c *CSV) Rows() int { return c.rows }

// Dir routes windows to one append-only file per target character.
type Dir struct {
	dir     string
	prefix  string
	files   map[byte]*os.File
	writers map[byte]*CSV
}

// OpenDir creates dir if needed and opens one file per target for
// appending. Files are named <prefix>_<target>.csv.
func OpenDir(dir, prefix string, targets []byte) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	d := &Dir{
		dir:     dir,
		prefix:  prefix,
		files:   make(map[byte]*os.File),
		writers: make(map[byte]*CSV),
	}
	for _, t := range targets {
		if _, ok := d.files[t]; ok {
			continue
		}
		f, err := os.OpenFile(d.Path(t), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open sink for %q: %w", t, err)
		}
		d.files[t] = f
		d.writers[t] = NewCSV(f)
	}
	return d, nil
}

// Path returns the file used for target.
func (d *Dir) Path(target byte) string {
	return filepath.Join(d.dir, d.prefix+"_"+FileKey(target)+".csv")
}

// WriteContexts appends every window of batch to the file of its target.
func (d *Dir) WriteContexts(batch []scan.Context) error {
	for _, c := range batch {
		w, ok := d.writers[c.Target]
		if !ok {
			return fmt.Errorf("no sink for target %q", c.Target)
		}
		if err := w.Write(c.Chars); err != nil {
			return fmt.Errorf("write window for %q: %w", c.Target, err)
		}
	}
	for t, w := range d.writers {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush sink for %q: %w", t, err)
		}
	}
	return nil
}

// Rows returns the number of rows written per target during this session.
func (d *Dir) Rows() map[byte]int {
	out := make(map[byte]int, len(d.writers))
	for t, w := range d.writers {
		out[t] = w.Rows()
	}
	return out
}

// Close flushes and closes every file.
func (d *Dir) Close() error {
	targets := make([]int, 0, len(d.files))
	for t := range d.files {
		targets = append(targets, int(t))
	}
	sort.Ints(targets)

	var errs []error
	for _, t := range targets {
		b := byte(t)
		if err := d.writers[b].Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := d.files[b].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileKey renders a target character for use in a file name. ASCII letters
// and digits are used as they are; anything else becomes its hex code.
func FileKey(target byte) string {
	switch {
	case target >= 'a' && target <= 'z', target >= 'A' && target <= 'Z', target >= '0' && target <= '9':
		return string(rune(target))
	}
	return fmt.Sprintf("x%02x", target)
}
