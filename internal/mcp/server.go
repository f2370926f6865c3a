package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/run-llama/semtools/internal/embedder"
)

const (
	// ServerName is the MCP server name.
	ServerName = "semtools"
	// ServerVersion is the advertised server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the loaded embedding model. The
// workspace is re-opened per call so external prunes are observed.
type Server struct {
	mcp   *server.MCPServer
	model *embedder.StaticModel
}

// NewServer creates an MCP server backed by the shared embedding model.
func NewServer() (*Server, error) {
	model, err := embedder.Default()
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcp:   server.NewMCPServer(ServerName, ServerVersion),
		model: model,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers the search and workspace tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(workspaceStatusTool(), s.handleWorkspaceStatus)
	s.mcp.AddTool(workspacePruneTool(), s.handleWorkspacePrune)
}
