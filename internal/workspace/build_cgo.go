//go:build cgo_sqlite
// +build cgo_sqlite

package workspace

// This file is compiled when building with the cgo_sqlite tag. The CGO
// driver is noticeably faster on large catalogs.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver the catalog opens.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
