package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/run-llama/semtools/pkg/types"
)

// Store is a directory of per-file embedding artifacts.
type Store struct {
	root string // the entries directory
}

// Entry describes one stored artifact for listing and pruning.
type Entry struct {
	Meta      EntryMeta
	File      string // artifact path on disk
	SizeBytes int64
}

// New opens (creating if needed) an entry store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create entries directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the entries directory.
func (s *Store) Root() string { return s.root }

// EntryFile returns the artifact path for a source path. The name is the
// hex SHA-256 of the canonical absolute path, so distinct paths with
// identical content stay distinct entries.
func (s *Store) EntryFile(path string) string {
	sum := sha256.Sum256([]byte(path))
	return filepath.Join(s.root, hex.EncodeToString(sum[:])+".bin")
}

// Get loads the entry for path if it is still current: the artifact must
// decode, its fingerprint must match the bytes on disk at path, and its
// options fingerprint must match opts. Returns ErrNotFound when no entry
// exists, ErrStale when the source changed or options differ, and
// ErrCorruptArtifact (after deleting the artifact) when it cannot be
// decoded.
func (s *Store) Get(path string, opts types.OptionsFingerprint) (*types.FileEmbedding, error) {
	entryFile := s.EntryFile(path)
	data, err := os.ReadFile(entryFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	fe, err := Decode(data)
	if err != nil {
		// A corrupt artifact is unrecoverable; delete it so the
		// caller's re-embed can write a fresh one.
		_ = os.Remove(entryFile)
		return nil, err
	}

	if fe.Options != opts {
		return nil, types.ErrStale
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, types.ErrStale
	}
	if types.FingerprintBytes(source) != fe.Fingerprint {
		return nil, types.ErrStale
	}

	return fe, nil
}

// Put writes the entry atomically: temp file, fsync, then rename under
// an exclusive lock. Readers observe either the previous artifact or the
// new one.
func (s *Store) Put(fe *types.FileEmbedding) error {
	data, err := Encode(fe)
	if err != nil {
		return err
	}

	entryFile := s.EntryFile(fe.Path)

	tmp, err := os.CreateTemp(s.root, ".put-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}

	// The lock is held only for the rename: writers serialize on the
	// commit, readers never block.
	lock := flock.New(entryFile + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock entry: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Rename(tmpName, entryFile); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// Remove deletes the entry for path. Removing a missing entry is not an
// error.
func (s *Store) Remove(path string) error {
	entryFile := s.EntryFile(path)
	if err := os.Remove(entryFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	_ = os.Remove(entryFile + ".lock")
	return nil
}

// List scans the entries directory and decodes every artifact header.
// Undecodable artifacts are removed and skipped, so a listing doubles as
// a repair pass.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".bin") {
			continue
		}
		file := filepath.Join(s.root, de.Name())
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		meta, err := DecodeMeta(data)
		if err != nil {
			_ = os.Remove(file)
			continue
		}
		entries = append(entries, Entry{
			Meta:      *meta,
			File:      file,
			SizeBytes: int64(len(data)),
		})
	}
	return entries, nil
}

// Stat reports the entry count and total artifact footprint in bytes.
func (s *Store) Stat() (count int, sizeBytes int64, err error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to stat entries: %w", err)
	}
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".bin") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		count++
		sizeBytes += info.Size()
	}
	return count, sizeBytes, nil
}

// IsCurrent reports whether the bytes at path still match fingerprint.
// A missing or unreadable source counts as not current.
func IsCurrent(path string, fingerprint types.Fingerprint) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return types.FingerprintBytes(data) == fingerprint
}
