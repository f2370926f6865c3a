// Package workspace manages named on-disk workspaces of cached
// file-embedding entries.
//
// A workspace lives under ~/.semtools/workspaces/<name> and owns its
// entries: one binary artifact per source file (see the store package),
// a header.json recording the schema version and embedding model, and a
// SQLite catalog that materializes the entry manifest. Status counts and
// prune candidates still come from a scan of the entries directory.
//
// The active workspace is selected by the SEMTOOLS_WORKSPACE environment
// variable, read once at startup. Without an active workspace, search
// runs purely in memory: nothing is persisted and nothing is reused.
//
//	ws, err := workspace.OpenActive(model.ModelID(), model.Dim())
//	switch {
//	case errors.Is(err, types.ErrNoWorkspace):
//	    // in-memory search
//	case err != nil:
//	    // real failure
//	}
//
// # Catalog
//
// The catalog (catalog.db) is a derived index over the entries
// directory, not the source of truth: deleting it loses nothing, and it
// is rebuilt from a directory scan whenever it is missing or out of
// sync. The SQLite driver is selected at build time, mirroring the two
// supported build modes:
//
//	go build ./...                      # pure Go, modernc.org/sqlite
//	go build -tags cgo_sqlite ./...     # CGO, github.com/mattn/go-sqlite3
package workspace
