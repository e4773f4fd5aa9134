// Package prompts provides pre-built prompts for common network
// operations workflows: routing free-form requests to the right
// gateway tool and guiding multi-platform incident investigations.
package prompts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/intent"
)

// PromptDefinition represents a prompt with its metadata and handler
type PromptDefinition struct {
	// Prompt is the MCP prompt metadata
	Prompt *mcp.Prompt
	// Handler is the function that generates the prompt content
	Handler mcp.PromptHandler
}

// Registry holds all registered prompts
type Registry struct {
	logger  *zap.Logger
	prompts []*PromptDefinition
}

// NewRegistry creates a new prompt registry with all available prompts
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger,
	}
	r.registerPrompts()
	return r
}

// GetPrompts returns all registered prompt definitions
func (r *Registry) GetPrompts() []*PromptDefinition {
	return r.prompts
}

// registerPrompts registers all available prompts
func (r *Registry) registerPrompts() {
	r.prompts = []*PromptDefinition{
		r.routeRequestPrompt(),
		r.investigateIncidentPrompt(),
		r.dailyHealthCheckPrompt(),
		r.platformDeepDivePrompt(),
		r.safeAutomationChangePrompt(),
	}
}

// Helper to create a prompt result with user role
func createPromptResult(description, content string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: content,
				},
			},
		},
	}
}

// getStringArg safely extracts a string argument with a default value
func getStringArg(args map[string]string, key, defaultVal string) string {
	if val, ok := args[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

// routeRequestPrompt creates the "route_request" prompt definition.
// It runs the request through the intent classifier and shows the
// gateway tool call that would serve it.
func (r *Registry) routeRequestPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "route_request",
			Title:       "Route a Network Request",
			Description: "Classify a free-form network operations request and recommend the gateway tool call that serves it",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "request",
					Description: "The network operations request in plain language (e.g., 'show me critical alerts on meraki')",
					Required:    true,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			request := getStringArg(req.Params.Arguments, "request", "show network status")

			parsed := intent.Classify(request)
			invocation := intent.RouteIntent(parsed)

			if invocation.Reply != "" {
				content := fmt.Sprintf(`I analyzed your request: "%s"

This one is answered directly, no backend call needed:

%s`, request, invocation.Reply)
				return createPromptResult("Route a network request", content), nil
			}

			argsJSON, err := json.MarshalIndent(invocation.Arguments, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal invocation arguments", zap.Error(err))
				return nil, err
			}

			platform := parsed.Platform
			if platform == "" {
				platform = "none detected, the call fans out to every matching backend"
			}

			content := fmt.Sprintf(`I analyzed your request: "%s"

**Detected intent:** %s (confidence %.0f%%)
**Platform hint:** %s

**Recommended tool call:**
- Tool: %s
- Arguments:
%s

Run the call as shown, or tighten it first:
- Add a "platforms" filter to query a single platform
- Set "tool_name" to call one specific backend tool instead of fanning out
- Destructive automation calls publish an approval request and are audited

If the classification looks wrong, rephrase the request or call the intended role tool directly.`,
				request, parsed.Category, parsed.Confidence*100, platform, invocation.Tool, string(argsJSON))

			return createPromptResult("Route a network request", content), nil
		},
	}
}

// investigateIncidentPrompt creates the "investigate_incident" prompt definition
func (r *Registry) investigateIncidentPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "investigate_incident",
			Title:       "Investigate an Incident",
			Description: "Guide through a multi-platform incident investigation: correlation, root cause, anomalies, and risk",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "window",
					Description: "Correlation window in seconds (e.g., '300', '900')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			window := getStringArg(req.Params.Arguments, "window", "300")

			content := fmt.Sprintf(`Let's investigate this incident across platforms. I'll walk you through the analytics workflow:

**Step 1: Correlate Events**
- Use: infer_correlate_events
- Parameters:
  - window_seconds: %s
  - min_severity: "low" (raise to "high" on noisy networks)
Groups events from different platforms that share a time window and affected entities.

**Step 2: Root Cause Analysis**
- Use: infer_root_cause_analysis
- Parameters:
  - window_seconds: %s
Matches each correlated group against the template catalog and returns the probable root cause with recommended actions. Pass correlation_id to focus on one group from step 1.

**Step 3: Check for Anomalies**
- Use: infer_detect_anomalies
- Parameters:
  - lookback_minutes: 60
Frequency spikes often precede or accompany the incident signal. Anomalies on the same platform as a correlated group strengthen the diagnosis.

**Step 4: Score the Risk**
- Use: infer_network_risk_score
Produces a 0-100 composite from recent events, anomalies, and failure predictions. Use it to decide whether this incident needs immediate escalation.

**Step 5: Drill into the Affected Platforms**
- Use: observability
- Parameters:
  - query: "current status"
  - platforms: the platforms named in the correlated group
Live backend data confirms or rules out what the correlation suggested.

I'll help you interpret each result and decide the next step. Start with step 1.`, window, window)

			return createPromptResult("Incident investigation workflow", content), nil
		},
	}
}

// dailyHealthCheckPrompt creates the "daily_health_check" prompt definition
func (r *Registry) dailyHealthCheckPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "daily_health_check",
			Title:       "Daily Health Check",
			Description: "Morning review of network health across every connected platform",
			Arguments:   []*mcp.PromptArgument{},
		},
		Handler: func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			content := `I'll run through the daily network health review. Here's the sequence:

**Step 1: Cross-Platform Status**
- Use: network_status
One call probes every connected backend and reports reachability.

**Step 2: Gateway Health**
- Use: gateway_health
Confirms the routing table is populated and shows how many backends and tools are registered.

**Step 3: Overnight Risk**
- Use: infer_network_risk_score
A LOW score means a quiet night. MODERATE or above warrants the next two steps.

**Step 4: Incident Timeline**
- Use: infer_get_incident_timeline
- Parameters:
  - hours: 24
Lists the root-caused incidents since yesterday, newest first.

**Step 5: Broad Observability Sweep**
- Use: observability
- Parameters:
  - query: "overnight summary"
Fans out to every observability-capable backend for alert counts and device health.

Flag anything 🔴 or 🟠 for follow-up. Ready to start with step 1?`

			return createPromptResult("Daily health check workflow", content), nil
		},
	}
}

// platformDeepDivePrompt creates the "platform_deep_dive" prompt definition
func (r *Registry) platformDeepDivePrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "platform_deep_dive",
			Title:       "Platform Deep Dive",
			Description: "Focused investigation of a single platform: live state, anomalies, and recent incidents",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "platform",
					Description: "Platform to investigate (e.g., 'meraki', 'ise', 'thousandeyes')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			platform := getStringArg(req.Params.Arguments, "platform", "meraki")

			content := fmt.Sprintf(`Let's take a close look at %s. The workflow:

**Step 1: Live Platform State**
- Use: observability
- Parameters:
  - query: "full status"
  - platforms: ["%s"]
Queries only the %s backend for its current health and alerts.

**Step 2: Behavioral Anomalies**
- Use: infer_detect_anomalies
- Parameters:
  - lookback_minutes: 120
Look for entries under the %s heading; frequency spikes and silent sources both matter.

**Step 3: Cross-Platform Context**
- Use: infer_correlate_events
Check whether %s events correlate with another platform's. A correlated group means the problem may originate elsewhere.

**Step 4: Recent History**
- Use: infer_get_incident_timeline
- Parameters:
  - hours: 72
Recurring incidents naming %s point at a chronic cause rather than a one-off.

**Step 5: Configuration Review** (if steps 1-4 point at config)
- Use: configuration
- Parameters:
  - query: "recent changes"
  - platforms: ["%s"]

Start with step 1 and I'll help you read the results.`,
				platform, platform, platform, platform, platform, platform, platform)

			return createPromptResult("Platform deep dive workflow", content), nil
		},
	}
}

// safeAutomationChangePrompt creates the "safe_automation_change" prompt definition
func (r *Registry) safeAutomationChangePrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "safe_automation_change",
			Title:       "Safe Automation Change",
			Description: "Execute a network change through the automation role with approval and audit in place",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "change",
					Description: "The change to make (e.g., 'reboot the AP at site-a', 'quarantine endpoint 10.1.2.3')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			change := getStringArg(req.Params.Arguments, "change", "your change")

			content := fmt.Sprintf(`I'll help you execute this change safely: %s

**Step 1: Find the Right Tool**
- Use: automation
- Parameters:
  - query: ""
With no backend summary tools matched, the call lists every automation tool per platform. Tools marked 🔒 require approval before execution.

**Step 2: Verify the Target First**
Before changing anything, confirm the current state through a read-only call:
- Use: observability
- Parameters:
  - query: "status of the affected device or endpoint"

**Step 3: Execute the Change**
- Use: automation
- Parameters:
  - tool_name: the exact tool from step 1
  - arguments: the tool's parameters (device serial, endpoint IP, ...)

What happens on execution:
- Tools requiring approval publish an approval request before dispatch; unapproved calls are blocked and reported
- Every call is written to the audit log with caller, platform, parameter hash, and outcome

**Step 4: Confirm the Result**
Re-run the step 2 read-only check to verify the change took effect.

⚠️ Automation tools are not read-only. When in doubt, stop after step 1 and review with the platform owner.`, change)

			return createPromptResult("Safe automation change workflow", content), nil
		},
	}
}
