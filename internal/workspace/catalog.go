package workspace

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/run-llama/semtools/internal/store"
	"github.com/run-llama/semtools/pkg/types"
)

// catalogSchemaVersion is bumped whenever the catalog tables change; an
// older catalog is dropped and rebuilt from the entries directory.
const catalogSchemaVersion = 1

// Catalog is the materialized entry manifest: one row per artifact,
// kept in sync on every put and remove and rebuilt from a directory
// scan when missing or behind.
type Catalog struct {
	db *sql.DB
}

// CatalogRow is one manifest row.
type CatalogRow struct {
	Path        string
	Fingerprint types.Fingerprint
	Options     types.OptionsFingerprint
	Windows     int
	Dim         int
	SizeBytes   int64
	UpdatedAt   time.Time
}

// OpenCatalog opens (creating if needed) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Single writer; WAL lets concurrent searches read while one writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	var version int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read catalog version: %w", err)
	}

	if version != 0 && version != catalogSchemaVersion {
		// Older schema: the catalog is derived state, so rebuild from
		// scratch rather than migrating in place.
		if _, err := c.db.Exec("DROP TABLE IF EXISTS entries"); err != nil {
			return fmt.Errorf("failed to drop stale catalog: %w", err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS entries (
			path        TEXT PRIMARY KEY,
			fingerprint BLOB NOT NULL,
			opts        BLOB NOT NULL,
			windows     INTEGER NOT NULL,
			dim         INTEGER NOT NULL,
			size_bytes  INTEGER NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	if _, err := c.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", catalogSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set catalog version: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert records one entry.
func (c *Catalog) Upsert(row CatalogRow) error {
	const q = `
		INSERT INTO entries (path, fingerprint, opts, windows, dim, size_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			opts        = excluded.opts,
			windows     = excluded.windows,
			dim         = excluded.dim,
			size_bytes  = excluded.size_bytes,
			updated_at  = excluded.updated_at`
	_, err := c.db.Exec(q, row.Path, row.Fingerprint[:], row.Options[:],
		row.Windows, row.Dim, row.SizeBytes, row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert catalog row: %w", err)
	}
	return nil
}

// Delete removes one entry row. Deleting a missing row is not an error.
func (c *Catalog) Delete(path string) error {
	if _, err := c.db.Exec("DELETE FROM entries WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete catalog row: %w", err)
	}
	return nil
}

// Rows returns every manifest row ordered by path.
func (c *Catalog) Rows() ([]CatalogRow, error) {
	rows, err := c.db.Query(
		"SELECT path, fingerprint, opts, windows, dim, size_bytes, updated_at FROM entries ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CatalogRow
	for rows.Next() {
		var r CatalogRow
		var fp, opts []byte
		if err := rows.Scan(&r.Path, &fp, &opts, &r.Windows, &r.Dim, &r.SizeBytes, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		copy(r.Fingerprint[:], fp)
		copy(r.Options[:], opts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count reports the row count and summed artifact footprint.
func (c *Catalog) Count() (entries int, sizeBytes int64, err error) {
	err = c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries").
		Scan(&entries, &sizeBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return entries, sizeBytes, nil
}

// Rebuild replaces the manifest with rows derived from a directory scan.
func (c *Catalog) Rebuild(entries []store.Entry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	const q = `
		INSERT INTO entries (path, fingerprint, opts, windows, dim, size_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := tx.Exec(q, e.Meta.Path, e.Meta.Fingerprint[:], e.Meta.Options[:],
			e.Meta.Windows, e.Meta.Dim, e.SizeBytes, now); err != nil {
			return fmt.Errorf("failed to insert catalog row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return nil
}
