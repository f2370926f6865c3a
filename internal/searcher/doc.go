// Package searcher orchestrates a search invocation end to end.
//
// The executor resolves the requested paths (expanding directories and
// filtering to text-like files), acquires per-file embeddings through
// the ingestion scheduler, embeds the query, ranks every candidate
// window, and assembles context lines for the survivors by re-reading
// the originating files.
//
//	s := searcher.New(model, ws)
//	results, err := s.Search(ctx, searcher.Request{
//	    Query: "how does the cache detect staleness",
//	    Paths: []string{"docs/"},
//	    NLines: 3,
//	    TopK:   3,
//	})
//
// Results come back sorted ascending by (distance, path, start line),
// so identical invocations produce byte-identical output.
package searcher
