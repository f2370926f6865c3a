//go:build !cgo_sqlite
// +build !cgo_sqlite

package workspace

// This file is compiled when building without the cgo_sqlite tag. It
// uses the pure Go SQLite implementation, so cross-compilation needs no
// C toolchain.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver the catalog opens.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
