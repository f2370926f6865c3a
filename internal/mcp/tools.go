package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/run-llama/semtools/internal/searcher"
	"github.com/run-llama/semtools/internal/workspace"
	"github.com/run-llama/semtools/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNoWorkspace   = -32001 // No active workspace configured
	ErrorCodeEmptyQuery    = -32002 // Query parameter is empty
)

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	rawFiles, ok := args["files"].([]interface{})
	if !ok || len(rawFiles) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "files parameter is required", map[string]interface{}{
			"param": "files",
		})
	}
	files := make([]string, 0, len(rawFiles))
	for _, f := range rawFiles {
		path, ok := f.(string)
		if !ok || path == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "files must be non-empty strings", nil)
		}
		files = append(files, path)
	}

	req := searcher.Request{
		Query:      query,
		Paths:      files,
		NLines:     getIntDefault(args, "n_lines", searcher.DefaultContextLines),
		TopK:       getIntDefault(args, "top_k", 3),
		IgnoreCase: getBoolDefault(args, "ignore_case", false),
		Recursive:  getBoolDefault(args, "recursive", false),
	}
	if v, ok := args["max_distance"].(float64); ok {
		req.MaxDistance = &v
	}

	ws := s.openWorkspace()
	if ws != nil {
		defer func() { _ = ws.Close() }()
	}

	results, err := searcher.New(s.model, ws).Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

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

	return mcp.NewToolResultText(formatJSON(out)), nil
}

// handleWorkspaceStatus handles the workspace_status tool invocation
func (s *Server) handleWorkspaceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws := s.openWorkspace()
	if ws == nil {
		return nil, newMCPError(ErrorCodeNoWorkspace, "no active workspace; set SEMTOOLS_WORKSPACE", nil)
	}
	defer func() { _ = ws.Close() }()

	status, err := ws.Status()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "status failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleWorkspacePrune handles the workspace_prune tool invocation
func (s *Server) handleWorkspacePrune(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws := s.openWorkspace()
	if ws == nil {
		return nil, newMCPError(ErrorCodeNoWorkspace, "no active workspace; set SEMTOOLS_WORKSPACE", nil)
	}
	defer func() { _ = ws.Close() }()

	out, err := ws.Prune()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "prune failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// openWorkspace opens the env-selected workspace; nil when none is
// active or it cannot be opened, in which case search degrades to
// in-memory mode.
func (s *Server) openWorkspace() *workspace.Workspace {
	ws, err := workspace.OpenActive(s.model.ModelID(), s.model.Dim())
	if err != nil {
		return nil
	}
	return ws
}

// newMCPError creates a JSON-RPC style error with optional data
func newMCPError(code int, message string, data map[string]interface{}) error {
	if data != nil {
		if encoded, err := json.Marshal(data); err == nil {
			return fmt.Errorf("mcp error %d: %s (%s)", code, message, string(encoded))
		}
	}
	return fmt.Errorf("mcp error %d: %s", code, message)
}

// formatJSON renders a value as indented JSON for a text tool result
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// getBoolDefault extracts a bool argument with a default
func getBoolDefault(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// getIntDefault extracts an integer argument with a default
func getIntDefault(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}
