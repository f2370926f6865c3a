package searcher

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/run-llama/semtools/pkg/types"
)

// WriteHuman emits results in the human-readable format:
//
//	<path>:<ctx_start>::<ctx_end> (<distance>)
//	<context lines, verbatim>
//	<blank line>
func WriteHuman(w io.Writer, results []types.SearchResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s:%d::%d (%.4f)\n", r.Path, r.ContextStart, r.ContextEnd, r.Distance); err != nil {
			return err
		}
		for _, line := range r.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON emits results as one structured document, preserving order.
func WriteJSON(w io.Writer, results []types.SearchResult) error {
	out := types.SearchOutput{Results: make([]types.SearchResultJSON, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, types.SearchResultJSON{
			Path:         r.Path,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			ContextStart: r.ContextStart,
			ContextEnd:   r.ContextEnd,
			Distance:     r.Distance,
			Text:         strings.Join(r.Lines, "\n"),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
