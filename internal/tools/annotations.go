package tools

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Annotation helper functions to create common annotation patterns.
// These help ensure consistent annotation across all tools.

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// ReadOnlyAnnotations returns annotations for read-only tools. These
// tools don't modify any state and are safe to call repeatedly.
func ReadOnlyAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          title,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false), // the gateway fans out to a bounded set of backends
	}
}

// GatedAnnotations returns annotations for tools that can reach
// destructive backend operations. DestructiveHint stays unset so
// clients apply their cautious default, matching the approval gate
// these tools route through.
func GatedAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:         title,
		ReadOnlyHint:  false,
		OpenWorldHint: boolPtr(false),
	}
}

// HealthAnnotations returns annotations for liveness-style tools.
// Read-only, but not marked idempotent: uptime and probe results
// change between calls.
func HealthAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:         title,
		ReadOnlyHint:  true,
		OpenWorldHint: boolPtr(false),
	}
}
