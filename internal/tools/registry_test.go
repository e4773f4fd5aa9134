package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetAllTools(t *testing.T) {
	all := GetAllTools(nil, nil, zap.NewNop())

	t.Run("expected tool count", func(t *testing.T) {
		assert.Len(t, all, GetToolCount())
	})

	t.Run("all tools have required methods", func(t *testing.T) {
		for _, tool := range all {
			assert.NotEmpty(t, tool.Name(), "Tool should have a name")
			assert.NotEmpty(t, tool.Description(), "Tool %s should have a description", tool.Name())
			assert.NotNil(t, tool.InputSchema(), "Tool %s should have an input schema", tool.Name())
			assert.NotNil(t, tool.Annotations(), "Tool %s should have annotations", tool.Name())
			assert.GreaterOrEqual(t, tool.DefaultTimeout(), time.Duration(0),
				"Tool %s should have non-negative timeout", tool.Name())
		}
	})

	t.Run("no duplicate tool names", func(t *testing.T) {
		names := make(map[string]bool)
		for _, tool := range all {
			name := tool.Name()
			assert.False(t, names[name], "Duplicate tool name: %s", name)
			names[name] = true
		}
	})

	t.Run("registers the full gateway surface", func(t *testing.T) {
		names := make(map[string]bool, len(all))
		for _, tool := range all {
			names[tool.Name()] = true
		}
		for _, expected := range []string{
			"observability", "security", "automation", "configuration", "compliance", "identity",
			"network_status", "gateway_health",
			"infer_correlate_events", "infer_root_cause_analysis", "infer_detect_anomalies",
			"infer_predict_failures", "infer_get_incident_timeline", "infer_network_risk_score",
		} {
			assert.True(t, names[expected], "missing tool %s", expected)
		}
	})

	t.Run("input schemas reject unknown fields", func(t *testing.T) {
		for _, tool := range all {
			schema, ok := tool.InputSchema().(map[string]interface{})
			require.True(t, ok, "Tool %s schema should be an object", tool.Name())
			assert.Equal(t, false, schema["additionalProperties"],
				"Tool %s should close its input schema", tool.Name())
		}
	})

	t.Run("analytics tools are read-only", func(t *testing.T) {
		for _, tool := range all {
			if len(tool.Name()) > 6 && tool.Name()[:6] == "infer_" {
				assert.True(t, tool.Annotations().ReadOnlyHint,
					"Tool %s should be read-only", tool.Name())
			}
		}
	})
}
