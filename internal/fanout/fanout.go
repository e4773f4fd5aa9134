// Package fanout implements the role meta-tool engine. A role query
// either calls one routed tool directly or broadcasts to every
// summary-capable backend serving the role and aggregates the results
// into a single Markdown document. Gated tools publish an approval
// request to the bus and are recorded in the audit log before
// dispatch.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/netopscore/netops-gateway/internal/audit"
	gwerrors "github.com/netopscore/netops-gateway/internal/errors"
	"github.com/netopscore/netops-gateway/internal/forward"
	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/routing"
	"github.com/netopscore/netops-gateway/internal/security"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Backend sections in the aggregated document are truncated to this
// many runes.
const sectionLimit = 500

// Query is the input shape shared by every role meta-tool. All fields
// are optional.
type Query struct {
	Query     string                 `json:"query,omitempty"`
	Platforms []string               `json:"platforms,omitempty"`
	ToolName  string                 `json:"tool_name,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ApprovalRequest is the envelope published to the approval channel
// for gated tool calls.
type ApprovalRequest struct {
	ApprovalID  string    `json:"approval_id"`
	ToolName    string    `json:"tool_name"`
	Platform    string    `json:"platform"`
	Caller      string    `json:"caller"`
	ParamsHash  string    `json:"params_hash"`
	RequestedAt time.Time `json:"requested_at"`
}

// ApprovalGate decides whether a gated call may proceed after its
// approval request has been published. The default gate admits
// everything; a policy engine can replace it without changing call
// sites.
type ApprovalGate func(ctx context.Context, req ApprovalRequest) bool

// ApprovalPublisher publishes approval-request envelopes. Satisfied by
// *bus.Bus.
type ApprovalPublisher interface {
	RequestApproval(ctx context.Context, data interface{}) int64
}

// Engine fans role queries out across the routing table
type Engine struct {
	router    *routing.Router
	forwarder *forward.Forwarder
	approvals ApprovalPublisher
	auditLog  *audit.Logger
	gate      ApprovalGate
	version   string
	started   time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New builds a fan-out engine. The approval gate defaults to
// admit-all; metrics may be nil.
func New(router *routing.Router, forwarder *forward.Forwarder, approvals ApprovalPublisher, auditLog *audit.Logger, version string, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		router:    router,
		forwarder: forwarder,
		approvals: approvals,
		auditLog:  auditLog,
		gate:      func(context.Context, ApprovalRequest) bool { return true },
		version:   version,
		started:   time.Now().UTC(),
		logger:    logger.Named("fanout"),
		metrics:   m,
	}
}

// SetApprovalGate replaces the admission hook for gated tool calls
func (e *Engine) SetApprovalGate(gate ApprovalGate) {
	if gate != nil {
		e.gate = gate
	}
}

// FanOut answers one role meta-tool call. With tool_name set it
// forwards a single routed tool; otherwise it broadcasts to the
// role's summary tools and aggregates their answers.
func (e *Engine) FanOut(ctx context.Context, role model.Role, params Query, caller string) string {
	table := e.router.Table()

	if params.ToolName != "" {
		return e.callDirect(ctx, table, params, caller)
	}

	entries := table.ToolsForRole(role)
	if len(params.Platforms) > 0 {
		allowed := make(map[string]bool, len(params.Platforms))
		for _, p := range params.Platforms {
			allowed[p] = true
		}
		filtered := make([]*routing.Entry, 0, len(entries))
		for _, entry := range entries {
			if allowed[string(entry.Capability.Platform)] {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		return fmt.Sprintf("No tools available for role **%s**.", role)
	}

	broadcast := summaryTools(entries)
	if len(broadcast) == 0 {
		return renderListing(role, entries)
	}

	results := e.dispatch(ctx, broadcast)
	return renderSummary(role, broadcast, results)
}

// callDirect forwards one routed tool call, publishing an approval
// request and auditing before dispatch when the capability is gated.
func (e *Engine) callDirect(ctx context.Context, table *routing.Table, params Query, caller string) string {
	entry, ok := table.GetTool(params.ToolName)
	if !ok {
		return fmt.Sprintf("❌ Tool `%s` not found in routing table.", params.ToolName)
	}

	cap := entry.Capability
	action := audit.ActionExecute
	switch {
	case cap.Destructive:
		action = audit.ActionDelete
	case cap.ReadOnly:
		action = audit.ActionRead
	}

	if cap.RequiresApproval || cap.Destructive {
		req := ApprovalRequest{
			ApprovalID:  uuid.NewString(),
			ToolName:    cap.ToolName,
			Platform:    string(cap.Platform),
			Caller:      caller,
			ParamsHash:  audit.HashParams(params.Arguments),
			RequestedAt: time.Now().UTC(),
		}
		if e.approvals != nil {
			e.approvals.RequestApproval(ctx, req)
		}
		if e.metrics != nil {
			e.metrics.RecordApprovalRequest(cap.ToolName)
		}
		e.logger.Info("Approval requested",
			zap.String("approval_id", req.ApprovalID),
			zap.String("tool", cap.ToolName),
			zap.String("caller", caller),
		)
		if !e.gate(ctx, req) {
			e.auditExecution(ctx, caller, cap, action, params.Arguments, false, 0, gwerrors.NewApprovalRequired(cap.ToolName))
			return fmt.Sprintf("❌ Tool `%s` requires approval and was not admitted.", cap.ToolName)
		}
	}

	start := time.Now()
	result := e.forwarder.CallTool(ctx, entry.Backend, entry.Endpoint, cap.ToolName, params.Arguments)
	latency := time.Since(start)

	errText, failed := forward.ErrorMessage(result)
	var callErr error
	if failed {
		callErr = gwerrors.FromForwardError(entry.Backend, errText)
	}
	e.auditExecution(ctx, caller, cap, action, params.Arguments, !failed, latency, callErr)
	if e.metrics != nil {
		e.metrics.RecordToolExecution(cap.ToolName, !failed, latency)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return security.MaskSensitiveData(string(data))
}

func (e *Engine) auditExecution(ctx context.Context, caller string, cap model.Capability, action string, args map[string]interface{}, success bool, latency time.Duration, err error) {
	if e.auditLog == nil {
		return
	}
	e.auditLog.LogToolExecution(ctx, caller, cap.ToolName, string(cap.Platform), action, args, success, latency, err)
}

// summaryTools selects the broadcastable subset of role entries
func summaryTools(entries []*routing.Entry) []*routing.Entry {
	var out []*routing.Entry
	for _, entry := range entries {
		name := entry.Capability.ToolName
		if strings.Contains(name, "health") || strings.Contains(name, "overview") || strings.Contains(name, "status") {
			out = append(out, entry)
		}
	}
	return out
}

// dispatch calls every tool in parallel with empty arguments. One slow
// or failing backend never blocks the others beyond the forwarder
// timeout.
func (e *Engine) dispatch(ctx context.Context, entries []*routing.Entry) []map[string]interface{} {
	results := make([]map[string]interface{}, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry *routing.Entry) {
			defer wg.Done()
			results[i] = e.forwarder.CallTool(ctx, entry.Backend, entry.Endpoint, entry.Capability.ToolName, map[string]interface{}{})
		}(i, entry)
	}
	wg.Wait()

	return results
}

func renderListing(role model.Role, entries []*routing.Entry) string {
	lines := []string{fmt.Sprintf("## %s — Available Tools\n", roleTitle(role))}
	for _, entry := range entries {
		line := fmt.Sprintf("- `%s` (%s)", entry.Capability.ToolName, entry.Capability.Platform)
		if entry.Capability.RequiresApproval {
			line += " 🔒"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderSummary(role model.Role, entries []*routing.Entry, results []map[string]interface{}) string {
	lines := []string{fmt.Sprintf("## %s — Cross-Platform Summary\n", roleTitle(role))}
	for i, entry := range entries {
		platform := entry.Capability.Platform
		if errText, failed := forward.ErrorMessage(results[i]); failed {
			lines = append(lines, fmt.Sprintf("### ❌ %s\n_%s_\n", platform, errText))
			continue
		}
		text, err := json.MarshalIndent(results[i], "", "  ")
		if err != nil {
			text = []byte(fmt.Sprintf("%v", results[i]))
		}
		section := security.MaskSensitiveData(string(text))
		lines = append(lines, fmt.Sprintf("### %s\n%s\n", platform, truncate(section, sectionLimit)))
	}
	return strings.Join(lines, "\n")
}

// NetworkStatus probes every connected backend's health tool in
// parallel and reports one line per backend.
func (e *Engine) NetworkStatus(ctx context.Context) string {
	ctx, span := tracing.ToolSpan(ctx, "network_status")
	defer span.End()

	table := e.router.Table()
	servers := table.Servers()

	lines := []string{
		"## NetOps Gateway — Network Status Overview\n",
		fmt.Sprintf("**Connected Servers:** %d\n", len(servers)),
	}

	healthy := make([]bool, len(servers))
	var wg sync.WaitGroup
	for i, name := range servers {
		endpoint, ok := table.Endpoint(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, name, endpoint string) {
			defer wg.Done()
			healthTool := strings.TrimSuffix(name, "_mcp") + "_health"
			result := e.forwarder.CallTool(ctx, name, endpoint, healthTool, map[string]interface{}{})
			_, failed := forward.ErrorMessage(result)
			healthy[i] = !failed
		}(i, name, endpoint)
	}
	wg.Wait()

	for i, name := range servers {
		if healthy[i] {
			lines = append(lines, fmt.Sprintf("- 🟢 **%s** — healthy", name))
		} else {
			lines = append(lines, fmt.Sprintf("- 🔴 **%s** — unreachable", name))
		}
	}

	return strings.Join(lines, "\n")
}

// GatewayHealth reports the gateway's own status as a JSON document
func (e *Engine) GatewayHealth() string {
	table := e.router.Table()

	doc := map[string]interface{}{
		"service":        "netops_gateway",
		"status":         "healthy",
		"version":        e.version,
		"uptime_seconds": math.Round(time.Since(e.started).Seconds()*10) / 10,
		"routing_table": map[string]interface{}{
			"servers":      table.ServerCount(),
			"tools":        table.ToolCount(),
			"last_refresh": table.BuiltAt().UTC().Format(time.RFC3339),
		},
		"endpoints": table.AllEndpoints(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return `{"service": "netops_gateway", "status": "unknown"}`
	}
	return string(data)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func roleTitle(role model.Role) string {
	return cases.Title(language.English).String(string(role))
}
