// Package ingest drives concurrent (re)embedding of requested files.
//
// For each path the scheduler first consults the active workspace's
// entry store; a current entry is a hit and costs one fingerprint check.
// Misses are re-embedded by a bounded worker pool: read, windowize,
// embed, persist. Results stream to the caller in completion order over
// a bounded channel, so a slow consumer applies backpressure to the
// workers.
//
//	sched := ingest.New(model, ws, opts, 0) // 0 workers = NumCPU
//	for out := range sched.Run(ctx, paths) {
//	    if out.Err != nil {
//	        log.Printf("skipping %s: %v", out.Path, out.Err)
//	        continue
//	    }
//	    // out.Embedding is ready
//	}
//
// Per-file failures (missing, unreadable, non-UTF-8, empty) come back as
// Outcome.Err values; they never stop the run and never leave a partial
// artifact behind. A workspace write failure is reported separately via
// Outcome.CacheErr while the in-memory embedding still flows to the
// caller.
package ingest
