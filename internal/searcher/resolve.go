package searcher

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// sniffLen is how many leading bytes are inspected to decide whether a
// file without a known extension is text.
const sniffLen = 512

// textExtensions are accepted without content sniffing.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".csv": true, ".tsv": true, ".json": true, ".jsonl": true,
	".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".html": true, ".htm": true, ".tex": true, ".log": true,
}

// ResolveFiles expands directory arguments, filters to text-like files,
// canonicalizes paths and de-duplicates while preserving order.
// Directories are expanded one level unless recursive is set. Unusable
// arguments are logged and dropped; resolving is best-effort.
func ResolveFiles(args []string, recursive bool) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(path string) {
		canonical := canonicalize(path)
		if seen[canonical] {
			return
		}
		seen[canonical] = true
		out = append(out, canonical)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			log.Printf("warning: skipping %s: %v", arg, err)
			continue
		}

		if !info.IsDir() {
			add(arg)
			continue
		}

		if recursive {
			err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					log.Printf("warning: skipping %s: %v", path, err)
					return nil
				}
				if d.IsDir() {
					if strings.HasPrefix(d.Name(), ".") && path != arg {
						return filepath.SkipDir
					}
					return nil
				}
				if isTextFile(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
			}
			continue
		}

		dirents, err := os.ReadDir(arg)
		if err != nil {
			log.Printf("warning: skipping %s: %v", arg, err)
			continue
		}
		for _, de := range dirents {
			if de.IsDir() {
				continue
			}
			path := filepath.Join(arg, de.Name())
			if isTextFile(path) {
				add(path)
			}
		}
	}

	return out, nil
}

// canonicalize resolves path to its absolute, symlink-free form. The
// canonical path is the cache key, so two spellings of one file share an
// entry.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// isTextFile reports whether path looks like UTF-8 text: a known text
// extension, or a sniffed prefix with no NUL bytes that decodes as
// UTF-8.
func isTextFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	buf = buf[:n]
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return false
	}
	// A sniffed prefix may cut a multi-byte rune; tolerate a ragged tail.
	for trimmed := 0; len(buf) > 0 && !utf8.Valid(buf) && trimmed < utf8.UTFMax; trimmed++ {
		buf = buf[:len(buf)-1]
	}
	return utf8.Valid(buf)
}
