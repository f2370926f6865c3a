// Package types provides shared type definitions for the semtools search core.
//
// This package defines the domain types used across the pipeline: line
// windows, per-file embedding sets, and search results.
//
// # Core Types
//
// Window represents one retrieval unit, a contiguous line range of a
// source file:
//
//	w := types.Window{
//	    StartLine: 12,
//	    EndLine:   12,
//	    Text:      "func main() {",
//	}
//
// FileEmbedding is the per-file artifact produced by the embedding
// pipeline and persisted by the workspace store. Window text is not
// stored; it is rehydrated from the source file at query time, guarded
// by the content fingerprint:
//
//	fe := &types.FileEmbedding{
//	    Path:        "/abs/path/notes.md",
//	    Fingerprint: types.FingerprintBytes(raw),
//	    Dim:         64,
//	    Windows:     windows,
//	    Vectors:     vectors, // len(windows) * Dim float32, unit rows
//	}
//
// SearchResult carries a ranked window together with its assembled
// context lines, ready for emission.
package types
