package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
	"github.com/cognicore/chargram/pkg/chargram/store"
)

const (
	dtypeUint64  = "u64"
	dtypeFloat64 = "f64"
)

// sqliteContainer implements store.Container using SQLite. Each dataset is a
// single row holding its shape and a little-endian blob of values.
type sqliteContainer struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a container database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Container, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrStoreUnavailable, path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteContainer{db: db}, nil
}

// Close closes the database connection
func (s *sqliteContainer) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS datasets (
	name TEXT PRIMARY KEY,
	dtype TEXT NOT NULL,
	dim0 INTEGER NOT NULL,
	dim1 INTEGER NOT NULL,
	dim2 INTEGER NOT NULL,
	data BLOB NOT NULL,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS attributes (
	dataset TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY(dataset, key),
	FOREIGN KEY(dataset) REFERENCES datasets(name) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// WriteCounts replaces absolute_data and its attribute set. Any
// normalized_data is dropped in the same transaction since it was derived
// from the previous counts.
func (s *sqliteContainer) WriteCounts(ctx context.Context, h *histogram.Histogram, attrs store.Attrs) error {
	blob := make([]byte, 8*len(h.Counts))
	for i, c := range h.Counts {
		binary.LittleEndian.PutUint64(blob[8*i:], c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertDataset(ctx, tx, store.DatasetCounts, dtypeUint64, h.Shape(), blob); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE dataset=?`, store.DatasetCounts); err != nil {
		return err
	}
	if err := upsertAttrs(ctx, tx, store.DatasetCounts, attrs); err != nil {
		return err
	}
	// foreign_keys is per connection, so attributes are removed explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE dataset=?`, store.DatasetNormalized); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name=?`, store.DatasetNormalized); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadCounts loads absolute_data, or the legacy results dataset when the
// container predates the rename.
func (s *sqliteContainer) ReadCounts(ctx context.Context) (*histogram.Histogram, store.Attrs, error) {
	for _, name := range []string{store.DatasetCounts, store.DatasetLegacyCounts} {
		shape, blob, err := s.readDataset(ctx, name, dtypeUint64)
		if errors.Is(err, internalerr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		counts := make([]uint64, len(blob)/8)
		for i := range counts {
			counts[i] = binary.LittleEndian.Uint64(blob[8*i:])
		}
		h, err := histogram.FromCounts(shape[0], shape[2], counts)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset %s: %w", name, err)
		}

		attrs, err := s.readAttrs(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		return h, attrs, nil
	}
	return nil, nil, fmt.Errorf("dataset %s: %w", store.DatasetCounts, internalerr.ErrNotFound)
}

// WriteNormalized overwrites normalized_data and upserts its attributes.
func (s *sqliteContainer) WriteNormalized(ctx context.Context, t *histogram.Tensor, attrs store.Attrs) error {
	blob := make([]byte, 8*len(t.Values))
	for i, v := range t.Values {
		binary.LittleEndian.PutUint64(blob[8*i:], math.Float64bits(v))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertDataset(ctx, tx, store.DatasetNormalized, dtypeFloat64, t.Shape(), blob); err != nil {
		return err
	}
	if err := upsertAttrs(ctx, tx, store.DatasetNormalized, attrs); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadNormalized loads normalized_data.
func (s *sqliteContainer) ReadNormalized(ctx context.Context) (*histogram.Tensor, store.Attrs, error) {
	shape, blob, err := s.readDataset(ctx, store.DatasetNormalized, dtypeFloat64)
	if err != nil {
		return nil, nil, err
	}

	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	t, err := histogram.TensorFromValues(shape[0], shape[2], values)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", store.DatasetNormalized, err)
	}

	attrs, err := s.readAttrs(ctx, store.DatasetNormalized)
	if err != nil {
		return nil, nil, err
	}
	return t, attrs, nil
}

// Datasets lists stored dataset names in alphabetical order.
func (s *sqliteContainer) Datasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM datasets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, rows.Err()
}

func upsertDataset(ctx context.Context, tx *sql.Tx, name, dtype string, shape [3]int, blob []byte) error {
	const stmt = `
INSERT INTO datasets (name, dtype, dim0, dim1, dim2, data, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	dtype=excluded.dtype,
	dim0=excluded.dim0,
	dim1=excluded.dim1,
	dim2=excluded.dim2,
	data=excluded.data,
	updated_at=excluded.updated_at
`
	_, err := tx.ExecContext(ctx, stmt, name, dtype, shape[0], shape[1], shape[2], blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write dataset %s: %w", name, err)
	}
	return nil
}

func upsertAttrs(ctx context.Context, tx *sql.Tx, dataset string, attrs store.Attrs) error {
	if len(attrs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO attributes (dataset, key, value) VALUES (?, ?, ?)
ON CONFLICT(dataset, key) DO UPDATE SET value=excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, dataset, k, attrs[k]); err != nil {
			return fmt.Errorf("write attribute %s/%s: %w", dataset, k, err)
		}
	}
	return nil
}

func (s *sqliteContainer) readDataset(ctx context.Context, name, dtype string) ([3]int, []byte, error) {
	var (
		shape  [3]int
		stored string
		blob   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dtype, dim0, dim1, dim2, data FROM datasets WHERE name=?`, name,
	).Scan(&stored, &shape[0], &shape[1], &shape[2], &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return shape, nil, fmt.Errorf("dataset %s: %w", name, internalerr.ErrNotFound)
	}
	if err != nil {
		return shape, nil, fmt.Errorf("read dataset %s: %w", name, err)
	}

	if stored != dtype {
		return shape, nil, fmt.Errorf("%w: dataset %s has dtype %s, want %s", internalerr.ErrInvalidInput, name, stored, dtype)
	}
	if shape[0] != shape[1] {
		return shape, nil, fmt.Errorf("%w: dataset %s has non-square shape %v", internalerr.ErrShapeMismatch, name, shape)
	}
	if len(blob) != 8*shape[0]*shape[1]*shape[2] {
		return shape, nil, fmt.Errorf("%w: dataset %s holds %d bytes for shape %v", internalerr.ErrShapeMismatch, name, len(blob), shape)
	}
	return shape, blob, nil
}

func (s *sqliteContainer) readAttrs(ctx context.Context, dataset string) (store.Attrs, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM attributes WHERE dataset=?`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := store.Attrs{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		attrs[k] = v
	}
	return attrs, rows.Err()
}
