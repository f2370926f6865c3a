package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/run-llama/semtools/internal/mcp"
	"github.com/run-llama/semtools/internal/workspace"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve semantic search as MCP tools over stdio",
	Long: `Runs an MCP server exposing semantic_search, workspace_status and
workspace_prune tools, for use by agent frontends. stdout carries the
MCP protocol; logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	server, err := mcp.NewServer()
	if err != nil {
		return reportFatal(err, "ModelError")
	}

	if name, err := workspace.Active(); err == nil {
		log.Printf("semtools MCP server starting (workspace %q)", name)
	} else {
		log.Printf("semtools MCP server starting (no workspace; in-memory only)")
	}

	return server.Serve(cmd.Context())
}
