package tools

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// BaseTool provides common functionality for all tools
type BaseTool struct {
	logger *zap.Logger
}

// NewBaseTool creates a new base tool
func NewBaseTool(logger *zap.Logger) *BaseTool {
	return &BaseTool{logger: logger}
}

// NewToolResultText creates a successful tool result with text content
func NewToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: text,
			},
		},
	}
}

// GetStringParam safely gets a string parameter from arguments
func GetStringParam(arguments map[string]interface{}, key string, required bool) (string, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return "", fmt.Errorf("missing required parameter: %s", key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string", key)
	}

	return str, nil
}

// GetObjectParam safely gets an object parameter from arguments
func GetObjectParam(arguments map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return nil, fmt.Errorf("missing required parameter: %s", key)
		}
		return nil, nil
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter %s must be an object", key)
	}

	return obj, nil
}

// GetIntParam safely gets an integer parameter from arguments
func GetIntParam(arguments map[string]interface{}, key string, required bool) (int, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return 0, fmt.Errorf("missing required parameter: %s", key)
		}
		return 0, nil
	}

	// Handle both float64 (JSON numbers) and int
	switch v := val.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number", key)
	}
}

// GetFloatParam safely gets a float parameter from arguments
func GetFloatParam(arguments map[string]interface{}, key string, required bool) (float64, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return 0, fmt.Errorf("missing required parameter: %s", key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number", key)
	}
}

// GetBoolParam safely gets a boolean parameter from arguments
func GetBoolParam(arguments map[string]interface{}, key string, required bool) (bool, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return false, fmt.Errorf("missing required parameter: %s", key)
		}
		return false, nil
	}

	boolVal, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %s must be a boolean", key)
	}

	return boolVal, nil
}

// GetStringSliceParam safely gets a list-of-strings parameter from arguments
func GetStringSliceParam(arguments map[string]interface{}, key string) ([]string, error) {
	val, exists := arguments[key]
	if !exists || val == nil {
		return nil, nil
	}

	raw, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter %s must be a list of strings", key)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %s must be a list of strings", key)
		}
		out = append(out, str)
	}
	return out, nil
}

// clampInt bounds v to [min, max], substituting def when v is zero.
func clampInt(v, def, min, max int) int {
	if v == 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
