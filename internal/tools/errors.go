package tools

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewToolResultError creates a new tool result with an error message.
// Error text always starts with the ❌ marker the renderers use.
func NewToolResultError(message string) *mcp.CallToolResult {
	// Ensure message is never empty
	if message == "" {
		message = "An unknown error occurred"
	}
	if !strings.HasPrefix(message, "❌") {
		message = "❌ " + message
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: message,
			},
		},
		IsError: true,
	}
}
