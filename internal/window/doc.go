// Package window converts file text into line-anchored retrieval windows.
//
// A window is a sliding view of WindowLines lines advanced by
// StrideLines; the final window is emitted even when short. Windowing
// controls retrieval granularity only — display-time context lines are a
// query-executor concern.
//
// # Basic Usage
//
//	opts := window.DefaultOptions() // one line per window, unit stride
//	windows := window.Windowize(text, opts)
//
//	for _, w := range windows {
//	    fmt.Printf("%d-%d: %s\n", w.StartLine, w.EndLine, w.Text)
//	}
//
// When CaseFold is set the window text is lowercased before embedding,
// but StartLine/EndLine always index the original file.
//
// The options participate in the cache key: the same file windowized
// with different options is a different cache entry, fingerprinted via
// Options.Fingerprint.
package window
