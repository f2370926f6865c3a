package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/window"
	"github.com/run-llama/semtools/internal/workspace"
	"github.com/run-llama/semtools/pkg/types"
)

// Per-file skip reasons
var (
	ErrNotUTF8   = errors.New("file is not valid UTF-8")
	ErrEmptyFile = errors.New("file has no windows")
)

// EnvWorkers overrides the worker count.
const EnvWorkers = "SEMTOOLS_WORKERS"

// Outcome is the per-file result streamed by Run.
type Outcome struct {
	Path      string
	Embedding *types.FileEmbedding
	Cached    bool  // served from the workspace store
	Err       error // per-file skip; Embedding is nil
	CacheErr  error // embedding succeeded but could not be persisted
}

// Stats counts outcomes across one run.
type Stats struct {
	Hits     int32
	Embedded int32
	Skipped  int32
}

// Scheduler embeds batches of files with a bounded worker pool.
type Scheduler struct {
	model   embedder.Embedder
	ws      *workspace.Workspace // nil for in-memory search
	opts    window.Options
	optsFP  types.OptionsFingerprint
	workers int

	stats Stats
}

// New creates a scheduler. ws may be nil, which disables persistence.
// workers <= 0 selects SEMTOOLS_WORKERS, falling back to NumCPU.
func New(model embedder.Embedder, ws *workspace.Workspace, opts window.Options, workers int) *Scheduler {
	if workers <= 0 {
		workers = workersFromEnv()
	}
	return &Scheduler{
		model:   model,
		ws:      ws,
		opts:    opts,
		optsFP:  opts.Fingerprint(model.ModelID(), model.ModelVersion(), model.Dim()),
		workers: workers,
	}
}

func workersFromEnv() int {
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// OptionsFingerprint returns the fingerprint entries are keyed by.
func (s *Scheduler) OptionsFingerprint() types.OptionsFingerprint { return s.optsFP }

// Stats returns the outcome counters. Valid once the Run channel closes.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Hits:     atomic.LoadInt32(&s.stats.Hits),
		Embedded: atomic.LoadInt32(&s.stats.Embedded),
		Skipped:  atomic.LoadInt32(&s.stats.Skipped),
	}
}

// Run embeds paths concurrently and streams outcomes in completion
// order. The returned channel closes when every path has been resolved
// or the context is cancelled. Cancellation drains at file boundaries;
// no partial artifact is ever written.
func (s *Scheduler) Run(ctx context.Context, paths []string) <-chan Outcome {
	results := make(chan Outcome, s.workers*2)

	go func() {
		defer close(results)

		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, s.workers)

	dispatch:
		for _, path := range paths {
			path := path // per-iteration copy for the goroutine below
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				break dispatch
			}

			g.Go(func() error {
				defer func() { <-sem }()

				out := s.processFile(path)
				select {
				case results <- out:
				case <-gctx.Done():
				}
				return nil
			})
		}

		_ = g.Wait()
	}()

	return results
}

// processFile resolves one path: cache hit, or read-windowize-embed-persist.
func (s *Scheduler) processFile(path string) Outcome {
	if s.ws != nil {
		fe, err := s.ws.Store.Get(path, s.optsFP)
		if err == nil {
			atomic.AddInt32(&s.stats.Hits, 1)
			return Outcome{Path: path, Embedding: fe, Cached: true}
		}
		// Not-found, stale and corrupt all mean the same thing here:
		// re-embed. Corruption was already repaired by the store.
	}

	fe, err := s.Embed(path)
	if err != nil {
		atomic.AddInt32(&s.stats.Skipped, 1)
		return Outcome{Path: path, Err: err}
	}
	atomic.AddInt32(&s.stats.Embedded, 1)

	out := Outcome{Path: path, Embedding: fe}
	if s.ws != nil {
		if err := s.ws.RecordPut(fe); err != nil {
			// The search still proceeds with the in-memory embedding;
			// only the cache write is lost.
			out.CacheErr = err
		}
	}
	return out
}

// Embed reads and embeds one file without touching the workspace.
func (s *Scheduler) Embed(path string) (*types.FileEmbedding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}

	windows := window.Windowize(string(data), s.opts)
	if len(windows) == 0 {
		return nil, ErrEmptyFile
	}

	return s.embedWindows(path, types.FingerprintBytes(data), windows)
}

// EmbedLines embeds an already-split in-memory document, used for the
// stdin pseudo-file.
func (s *Scheduler) EmbedLines(name string, lines []string) (*types.FileEmbedding, error) {
	windows := window.FromLines(lines, s.opts)
	if len(windows) == 0 {
		return nil, ErrEmptyFile
	}
	var raw []byte
	for i, line := range lines {
		if i > 0 {
			raw = append(raw, '\n')
		}
		raw = append(raw, line...)
	}
	return s.embedWindows(name, types.FingerprintBytes(raw), windows)
}

func (s *Scheduler) embedWindows(path string, fp types.Fingerprint, windows []types.Window) (*types.FileEmbedding, error) {
	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}

	vecs, err := s.model.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", path, err)
	}

	dim := s.model.Dim()
	fe := &types.FileEmbedding{
		Path:        path,
		Fingerprint: fp,
		Options:     s.optsFP,
		Dim:         dim,
		Windows:     windows,
		Vectors:     make([]float32, 0, len(windows)*dim),
	}
	for _, v := range vecs {
		fe.Vectors = append(fe.Vectors, v...)
	}
	return fe, nil
}
