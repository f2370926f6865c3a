package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Search text files for line windows semantically similar to a natural-language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"files": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Files or directories to search",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return",
					"default":     3,
					"minimum":     1,
				},
				"max_distance": map[string]interface{}{
					"type":        "number",
					"description": "Return every window with cosine distance <= this threshold (overrides top_k)",
				},
				"n_lines": map[string]interface{}{
					"type":        "integer",
					"description": "Context lines before/after each match",
					"default":     3,
					"minimum":     0,
				},
				"ignore_case": map[string]interface{}{
					"type":        "boolean",
					"description": "Case-fold text and query before embedding",
					"default":     false,
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Recurse into directory arguments",
					"default":     false,
				},
			},
			Required: []string{"query", "files"},
		},
	}
}

// workspaceStatusTool returns the tool definition for workspace_status
func workspaceStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "workspace_status",
		Description: "Report the active semtools workspace: name, root, entry count and footprint",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// workspacePruneTool returns the tool definition for workspace_prune
func workspacePruneTool() mcp.Tool {
	return mcp.Tool{
		Name:        "workspace_prune",
		Description: "Remove cached entries whose source files are missing or changed",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
