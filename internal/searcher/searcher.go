package searcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/ingest"
	"github.com/run-llama/semtools/internal/rank"
	"github.com/run-llama/semtools/internal/window"
	"github.com/run-llama/semtools/internal/workspace"
	"github.com/run-llama/semtools/pkg/types"
)

// StdinName is the synthetic path used when input comes from stdin.
const StdinName = "<stdin>"

// DefaultContextLines is the context radius when none is requested.
const DefaultContextLines = 3

// Request holds one search invocation's parameters.
type Request struct {
	Query       string
	Paths       []string // files or directories as given by the user
	NLines      int      // context lines before and after
	TopK        int
	MaxDistance *float64 // threshold mode; wins over TopK when set
	IgnoreCase  bool
	Recursive   bool
	Workers     int
}

// Searcher executes search requests against a model and an optional
// workspace.
type Searcher struct {
	model *embedder.StaticModel
	ws    *workspace.Workspace // nil means in-memory only
}

// New creates a Searcher. ws may be nil.
func New(model *embedder.StaticModel, ws *workspace.Workspace) *Searcher {
	return &Searcher{model: model, ws: ws}
}

// windowOptions derives the tokenizer options for a request.
func (r Request) windowOptions() window.Options {
	opts := window.DefaultOptions()
	opts.CaseFold = r.IgnoreCase
	return opts
}

// selector builds the selection-mode accumulator for a request.
func (r Request) selector() *rank.Selector {
	if r.MaxDistance != nil {
		return rank.NewThreshold(*r.MaxDistance)
	}
	return rank.NewTopK(r.TopK)
}

// queryVector embeds the query, case-folded iff requested.
func (s *Searcher) queryVector(r Request) []float32 {
	q := r.Query
	if r.IgnoreCase {
		q = strings.ToLower(q)
	}
	return s.model.EmbedSingle(q)
}

// Search resolves the requested paths and returns ranked results.
func (s *Searcher) Search(ctx context.Context, req Request) ([]types.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.ErrEmptyQuery
	}

	files, err := ResolveFiles(req.Paths, req.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	order := make(map[string]int, len(files))
	for i, f := range files {
		order[f] = i
	}

	qvec := s.queryVector(req)
	sel := req.selector()

	sched := ingest.New(s.model, s.ws, req.windowOptions(), req.Workers)
	for out := range sched.Run(ctx, files) {
		if out.Err != nil {
			log.Printf("warning: skipping %s: %v", out.Path, out.Err)
			continue
		}
		if out.CacheErr != nil {
			log.Printf("warning: result for %s will not be cached: %v", out.Path, out.CacheErr)
		}
		sel.RankFile(qvec, out.Embedding, order[out.Path])
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.assemble(sel.Results(), files, req.NLines, nil)
}

// SearchLines searches an in-memory document (the stdin pseudo-file).
// Context lines are served from the buffered document itself.
func (s *Searcher) SearchLines(ctx context.Context, req Request, lines []string) ([]types.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.ErrEmptyQuery
	}

	sched := ingest.New(s.model, nil, req.windowOptions(), 1)
	fe, err := sched.EmbedLines(StdinName, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to embed stdin: %w", err)
	}

	sel := req.selector()
	sel.RankFile(s.queryVector(req), fe, 0)

	return s.assemble(sel.Results(), []string{StdinName}, req.NLines, map[string][]string{StdinName: lines})
}

// assemble turns surviving candidates into display results: re-read each
// originating file once, clip the context range, and sort by
// (distance, path, start line).
func (s *Searcher) assemble(candidates []rank.Candidate, files []string, nLines int, preloaded map[string][]string) ([]types.SearchResult, error) {
	if nLines < 0 {
		nLines = DefaultContextLines
	}

	lineCache := make(map[string][]string, len(preloaded))
	for k, v := range preloaded {
		lineCache[k] = v
	}

	results := make([]types.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		path := files[c.FileOrder]

		lines, ok := lineCache[path]
		if !ok {
			lines = readLines(path)
			lineCache[path] = lines
		}
		if lines == nil {
			log.Printf("warning: could not re-read %s for context", path)
			continue
		}

		ctxStart := max(1, c.StartLine-nLines)
		ctxEnd := min(len(lines), c.EndLine+nLines)
		if ctxStart > len(lines) {
			// The file shrank between embedding and assembly.
			continue
		}

		results = append(results, types.SearchResult{
			Path:         path,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			ContextStart: ctxStart,
			ContextEnd:   ctxEnd,
			Distance:     c.Distance,
			Lines:        append([]string(nil), lines[ctxStart-1:ctxEnd]...),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.StartLine < b.StartLine
	})
	return results, nil
}

// readLines reads a file's lines for context assembly; nil on failure.
func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return window.SplitLines(string(data))
}
