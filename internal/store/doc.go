// Package store persists per-file embedding artifacts inside a
// workspace's entries directory.
//
// Each source file maps to one binary artifact named by the SHA-256 of
// its canonical absolute path. The artifact carries the content
// fingerprint, the tokenizer-options fingerprint, the window table and
// the contiguous float32 vector matrix; window text is never stored.
//
// # Artifact Layout (little-endian)
//
//	magic "SEMB" (4) | schema u16 | D u16 | N u32 |
//	fingerprint (32) | opts fingerprint (16) |
//	path_len u16 | path utf-8 |
//	window spans 2*N*i32 (start, end) |
//	vectors N*D*f32
//
// # Staleness
//
// Get recomputes the source file's content fingerprint and compares it
// with the stored one; modification time is never consulted. A mismatch
// returns ErrStale. Corrupt artifacts are deleted on read and reported
// so callers re-embed once.
//
// # Concurrency
//
// Writes go to a temp file in the entries directory and are renamed into
// place while holding an exclusive flock on a per-entry lock file, so
// cooperating processes see either the old or the new artifact, never a
// torn one.
package store
