// Package cli wires the semtools command tree: search, workspace
// management, and the MCP serving surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/pkg/types"
)

// Exit codes
const (
	ExitOK    = 0
	ExitUsage = 1 // argument errors
	ExitFatal = 2 // model-load or unrecoverable I/O errors
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "semtools",
	Short:         "Semantic search over local text files",
	Long:          "semtools searches text files by meaning using a local static embedding model,\ncaching per-file embeddings in named workspaces.",
	Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the command tree and returns the process exit code.
// SIGINT/SIGTERM cancel the command context so in-flight workers drain
// at file boundaries.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitOK
}

// exitCode maps an error to the documented exit codes: fatal for
// model-load and unrecoverable I/O failures, usage for everything else.
func exitCode(err error) int {
	switch {
	case errors.Is(err, embedder.ErrModelNotFound),
		errors.Is(err, embedder.ErrCorruptModel):
		return ExitFatal
	case errors.Is(err, errFatalIO):
		return ExitFatal
	case errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrNoWorkspace):
		return ExitUsage
	default:
		return ExitUsage
	}
}

// errFatalIO marks unrecoverable I/O failures.
var errFatalIO = errors.New("unrecoverable I/O error")
