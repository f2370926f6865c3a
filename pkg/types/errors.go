package types

import "errors"

// Domain errors shared across the pipeline
var (
	// ErrNotFound is returned when a requested entry doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a cached entry no longer matches its source
	ErrStale = errors.New("entry is stale")
	// ErrCorruptArtifact is returned when an artifact fails to decode
	ErrCorruptArtifact = errors.New("corrupt artifact")
	// ErrNoWorkspace is returned when no workspace is active
	ErrNoWorkspace = errors.New("no active workspace")
	// ErrEmptyQuery is returned when the search query is empty
	ErrEmptyQuery = errors.New("query cannot be empty")
)
