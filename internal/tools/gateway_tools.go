package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/fanout"
	"github.com/netopscore/netops-gateway/internal/model"
)

type callerKeyType struct{}

var callerKey callerKeyType

// WithCaller stamps the calling client's identity on the context so
// tool executions can be attributed in the audit trail.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller identity set by WithCaller, or
// "unknown" when none was set.
func CallerFromContext(ctx context.Context) string {
	if caller, ok := ctx.Value(callerKey).(string); ok && caller != "" {
		return caller
	}
	return "unknown"
}

// roleQuerySchema is the input schema shared by every role meta-tool.
func roleQuerySchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural language query or specific action",
			},
			"platforms": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Filter to specific platforms",
			},
			"tool_name": map[string]interface{}{
				"type":        "string",
				"description": "Call a specific tool directly by name",
			},
			"arguments": map[string]interface{}{
				"type":        "object",
				"description": "Arguments to pass to the tool",
			},
		},
		"additionalProperties": false,
	}
}

// roleSpec carries the registration surface of one role meta-tool.
type roleSpec struct {
	role  model.Role
	title string
	desc  string
	gated bool
}

var roleSpecs = []roleSpec{
	{
		role:  model.RoleObservability,
		title: "Observability",
		desc: "Query observability data across all Cisco platforms — health scores, " +
			"telemetry, monitoring alerts, ThousandEyes path analysis, INFER anomalies.",
	},
	{
		role:  model.RoleSecurity,
		title: "Security",
		desc: "Query security data across all Cisco platforms — XDR threats, Meraki " +
			"security events, Hypershield enforcement, INFER anomaly correlation.",
	},
	{
		role:  model.RoleAutomation,
		title: "Automation",
		desc: "Execute automation workflows across platforms — command runner, " +
			"remediation actions, policy deployment. ⚠️ Destructive actions require approval.",
		gated: true,
	},
	{
		role:  model.RoleConfiguration,
		title: "Configuration",
		desc: "Query and manage configuration across platforms — device configs, " +
			"security policies, network settings, site topology.",
	},
	{
		role:  model.RoleCompliance,
		title: "Compliance",
		desc: "Query compliance and audit data — posture status, policy drift, " +
			"certificate expiry, regulatory checks, INFER risk scoring.",
	},
	{
		role:  model.RoleIdentity,
		title: "Identity",
		desc: "Query identity and access data — ISE sessions, authentication logs, " +
			"endpoint profiling, agent identity badges.",
	},
}

// RoleFanOutTool is a role meta-tool: one MCP tool per gateway role
// that fans a query out to every backend serving that role.
type RoleFanOutTool struct {
	*BaseTool
	engine *fanout.Engine
	spec   roleSpec
}

// NewRoleFanOutTools creates the six role meta-tools.
func NewRoleFanOutTools(engine *fanout.Engine, logger *zap.Logger) []Tool {
	out := make([]Tool, 0, len(roleSpecs))
	for _, spec := range roleSpecs {
		out = append(out, &RoleFanOutTool{
			BaseTool: NewBaseTool(logger),
			engine:   engine,
			spec:     spec,
		})
	}
	return out
}

// Name returns the tool name
func (t *RoleFanOutTool) Name() string {
	return string(t.spec.role)
}

// Description returns the tool description
func (t *RoleFanOutTool) Description() string {
	return t.spec.desc
}

// Annotations returns tool hints for LLMs
func (t *RoleFanOutTool) Annotations() *mcp.ToolAnnotations {
	if t.spec.gated {
		return GatedAnnotations(t.spec.title)
	}
	return ReadOnlyAnnotations(t.spec.title)
}

// InputSchema returns the input schema
func (t *RoleFanOutTool) InputSchema() interface{} {
	return roleQuerySchema()
}

// DefaultTimeout returns the recommended timeout. Fan-out waits on the
// slowest backend.
func (t *RoleFanOutTool) DefaultTimeout() time.Duration {
	return 60 * time.Second
}

// Execute executes the tool
func (t *RoleFanOutTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	query, err := GetStringParam(arguments, "query", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	platforms, err := GetStringSliceParam(arguments, "platforms")
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	toolName, err := GetStringParam(arguments, "tool_name", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	args, err := GetObjectParam(arguments, "arguments", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	out := t.engine.FanOut(ctx, t.spec.role, fanout.Query{
		Query:     query,
		Platforms: platforms,
		ToolName:  toolName,
		Arguments: args,
	}, CallerFromContext(ctx))

	return NewToolResultText(out), nil
}

// NetworkStatusTool reports a quick reachability overview of every
// connected backend.
type NetworkStatusTool struct {
	*BaseTool
	engine *fanout.Engine
}

// NewNetworkStatusTool creates a new tool instance
func NewNetworkStatusTool(engine *fanout.Engine, logger *zap.Logger) *NetworkStatusTool {
	return &NetworkStatusTool{
		BaseTool: NewBaseTool(logger),
		engine:   engine,
	}
}

// Name returns the tool name
func (t *NetworkStatusTool) Name() string {
	return "network_status"
}

// Description returns the tool description
func (t *NetworkStatusTool) Description() string {
	return "Get a quick cross-platform network status summary."
}

// Annotations returns tool hints for LLMs
func (t *NetworkStatusTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Network Status")
}

// InputSchema returns the input schema
func (t *NetworkStatusTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *NetworkStatusTool) DefaultTimeout() time.Duration {
	return 30 * time.Second
}

// Execute executes the tool
func (t *NetworkStatusTool) Execute(ctx context.Context, _ map[string]interface{}) (*mcp.CallToolResult, error) {
	return NewToolResultText(t.engine.NetworkStatus(ctx)), nil
}

// GatewayHealthTool reports the gateway's own health as a JSON
// document: routing table freshness, uptime, connected endpoints.
type GatewayHealthTool struct {
	*BaseTool
	engine *fanout.Engine
}

// NewGatewayHealthTool creates a new tool instance
func NewGatewayHealthTool(engine *fanout.Engine, logger *zap.Logger) *GatewayHealthTool {
	return &GatewayHealthTool{
		BaseTool: NewBaseTool(logger),
		engine:   engine,
	}
}

// Name returns the tool name
func (t *GatewayHealthTool) Name() string {
	return "gateway_health"
}

// Description returns the tool description
func (t *GatewayHealthTool) Description() string {
	return "Gateway health check — routing table status and uptime."
}

// Annotations returns tool hints for LLMs
func (t *GatewayHealthTool) Annotations() *mcp.ToolAnnotations {
	return HealthAnnotations("Gateway Health")
}

// InputSchema returns the input schema
func (t *GatewayHealthTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *GatewayHealthTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *GatewayHealthTool) Execute(_ context.Context, _ map[string]interface{}) (*mcp.CallToolResult, error) {
	return NewToolResultText(t.engine.GatewayHealth()), nil
}
