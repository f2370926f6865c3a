package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/searcher"
	"github.com/run-llama/semtools/internal/workspace"
	"github.com/run-llama/semtools/pkg/types"
)

var (
	flagNLines      int
	flagTopK        int
	flagMaxDistance float64
	flagIgnoreCase  bool
	flagJSON        bool
	flagRecursive   bool
	flagWorkers     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query> [files...]",
	Short: "Search files for lines semantically similar to a query",
	Long: `Search embeds every line of the given files and returns the windows
closest to the query by cosine distance. With an active workspace
(SEMTOOLS_WORKSPACE), per-file embeddings are cached on disk and reused
until the file's content changes.

With no files, input is read from stdin and searched in memory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagNLines, "n-lines", "n", searcher.DefaultContextLines, "Context lines before/after each match")
	searchCmd.Flags().IntVar(&flagTopK, "top-k", 3, "Number of results to return")
	searchCmd.Flags().Float64VarP(&flagMaxDistance, "max-distance", "m", 0, "Return all results with distance <= this threshold (overrides --top-k)")
	searchCmd.Flags().BoolVarP(&flagIgnoreCase, "ignore-case", "i", false, "Case-fold text and query before embedding")
	searchCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Emit results as JSON")
	searchCmd.Flags().BoolVarP(&flagRecursive, "recursive", "r", false, "Recurse into directory arguments")
	searchCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Embedding workers (default: logical CPUs)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	files := args[1:]

	req := searcher.Request{
		Query:      query,
		Paths:      files,
		NLines:     flagNLines,
		TopK:       flagTopK,
		IgnoreCase: flagIgnoreCase,
		Recursive:  flagRecursive,
		Workers:    flagWorkers,
	}
	if cmd.Flags().Changed("max-distance") {
		tau := flagMaxDistance
		req.MaxDistance = &tau
	}

	model, err := embedder.Default()
	if err != nil {
		return reportFatal(err, "ModelError")
	}

	// stdin mode: no file arguments and piped input.
	if len(files) == 0 {
		if stdinIsTerminal() {
			return errors.New("no input provided: specify files as arguments or pipe input to stdin")
		}
		lines, err := readStdinLines()
		if err != nil {
			return fmt.Errorf("%w: reading stdin: %v", errFatalIO, err)
		}
		s := searcher.New(model, nil)
		results, err := s.SearchLines(cmd.Context(), req, lines)
		if err != nil {
			return err
		}
		return emit(results)
	}

	ws := openActiveWorkspace(model)
	if ws != nil {
		defer func() { _ = ws.Close() }()
	}

	s := searcher.New(model, ws)
	results, err := s.Search(cmd.Context(), req)
	if err != nil {
		return err
	}
	return emit(results)
}

func emit(results []types.SearchResult) error {
	if flagJSON {
		return searcher.WriteJSON(os.Stdout, results)
	}
	return searcher.WriteHuman(os.Stdout, results)
}

// openActiveWorkspace opens the env-selected workspace, degrading to
// in-memory search when none is active or the workspace cannot open.
func openActiveWorkspace(model *embedder.StaticModel) *workspace.Workspace {
	ws, err := workspace.OpenActive(model.ModelID(), model.Dim())
	if err != nil {
		if !errors.Is(err, types.ErrNoWorkspace) {
			log.Printf("warning: workspace unavailable, searching in memory: %v", err)
		}
		return nil
	}
	return ws
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func readStdinLines() ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// reportFatal prints a structured error in JSON mode before returning
// the error for exit-code mapping.
func reportFatal(err error, errorType string) error {
	if flagJSON {
		out, jsonErr := json.MarshalIndent(types.ErrorOutput{
			Error:     err.Error(),
			ErrorType: errorType,
		}, "", "  ")
		if jsonErr == nil {
			fmt.Fprintln(os.Stderr, string(out))
		}
	}
	return err
}
