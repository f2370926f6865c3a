// Package mcp exposes semtools search and workspace operations as MCP
// tools over stdio.
//
// Three tools are registered:
//
//   - semantic_search: embed a query and return the closest line
//     windows across a set of files, using the active workspace cache
//     when one is configured.
//   - workspace_status: report the active workspace's entry count and
//     footprint.
//   - workspace_prune: remove stale entries.
//
// Tool results are the same JSON documents the CLI emits with --json,
// so agent callers and shell callers see identical shapes.
package mcp
