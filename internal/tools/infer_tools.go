package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/infer"
)

// The INFER tools expose the reasoning engine over MCP. They read the
// shared event buffer and derived state; none of them mutate backend
// platforms, so they all carry read-only annotations.

func getBoolDefault(arguments map[string]interface{}, key string, def bool) (bool, error) {
	if _, ok := arguments[key]; !ok {
		return def, nil
	}
	return GetBoolParam(arguments, key, false)
}

func getFloatDefault(arguments map[string]interface{}, key string, def float64) (float64, error) {
	if _, ok := arguments[key]; !ok {
		return def, nil
	}
	return GetFloatParam(arguments, key, false)
}

// CorrelateEventsTool groups buffered events by entity overlap and
// time proximity.
type CorrelateEventsTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewCorrelateEventsTool creates a new tool instance
func NewCorrelateEventsTool(engine *infer.Engine, logger *zap.Logger) *CorrelateEventsTool {
	return &CorrelateEventsTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *CorrelateEventsTool) Name() string {
	return "infer_correlate_events"
}

// Description returns the tool description
func (t *CorrelateEventsTool) Description() string {
	return `Correlate events across all Cisco platforms to identify related incidents.

Groups events by entity overlap (shared devices, IPs, users) within a time
window, surfacing multi-platform incidents that individual platforms miss.`
}

// Annotations returns tool hints for LLMs
func (t *CorrelateEventsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Correlate Events")
}

// InputSchema returns the input schema
func (t *CorrelateEventsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"window_seconds": map[string]interface{}{
				"type":        "integer",
				"minimum":     30,
				"maximum":     3600,
				"description": "Time window for correlation",
			},
			"min_severity": map[string]interface{}{
				"type":        "string",
				"description": "Minimum severity to include",
				"default":     "low",
			},
			"platforms": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Filter to specific platforms",
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *CorrelateEventsTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *CorrelateEventsTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	window, err := GetIntParam(arguments, "window_seconds", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	minSeverity, err := GetStringParam(arguments, "min_severity", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	platforms, err := GetStringSliceParam(arguments, "platforms")
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	window = clampInt(window, t.engine.DefaultWindowSeconds(), 30, 3600)
	if minSeverity == "" {
		minSeverity = "low"
	}

	groups := t.engine.Correlate(window, minSeverity, platforms)
	return NewToolResultText(renderCorrelation(groups)), nil
}

func renderCorrelation(groups []infer.Group) string {
	if len(groups) == 0 {
		return "## INFER — Event Correlation\n\n✅ No correlated multi-platform events detected."
	}

	lines := []string{fmt.Sprintf("## INFER — Correlated Events (%d groups)\n", len(groups))}
	for _, g := range groups {
		lines = append(lines,
			fmt.Sprintf("### %s Correlation `%s`", SeverityEmoji(string(g.Severity)), shortID(g.CorrelationID)),
			fmt.Sprintf("**Platforms:** %s", strings.Join(g.Platforms, ", ")),
			fmt.Sprintf("**Events:** %d | **Severity:** %s", g.EventCount(), g.Severity),
			fmt.Sprintf("**Time Span:** %.0fs | **Entities:** %s", g.TimeSpan.Seconds(), joinLimited(g.AffectedEntities, 5)),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// RootCauseAnalysisTool matches correlated groups against the RCA
// template catalog.
type RootCauseAnalysisTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewRootCauseAnalysisTool creates a new tool instance
func NewRootCauseAnalysisTool(engine *infer.Engine, logger *zap.Logger) *RootCauseAnalysisTool {
	return &RootCauseAnalysisTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *RootCauseAnalysisTool) Name() string {
	return "infer_root_cause_analysis"
}

// Description returns the tool description
func (t *RootCauseAnalysisTool) Description() string {
	return `Perform AI-driven root cause analysis on correlated multi-platform events.

Matches correlated event groups against expert-curated root cause templates
to identify the most likely cause and provide actionable remediation steps.`
}

// Annotations returns tool hints for LLMs
func (t *RootCauseAnalysisTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Root Cause Analysis")
}

// InputSchema returns the input schema
func (t *RootCauseAnalysisTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"correlation_id": map[string]interface{}{
				"type":        "string",
				"description": "Specific correlation group to analyze",
			},
			"window_seconds": map[string]interface{}{
				"type":    "integer",
				"minimum": 30,
				"maximum": 3600,
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *RootCauseAnalysisTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *RootCauseAnalysisTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	correlationID, err := GetStringParam(arguments, "correlation_id", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	window, err := GetIntParam(arguments, "window_seconds", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	window = clampInt(window, t.engine.DefaultWindowSeconds(), 30, 3600)

	analyses := t.engine.AnalyzeRootCause(correlationID, window)
	return NewToolResultText(renderRootCause(analyses)), nil
}

func renderRootCause(analyses []infer.GroupAnalysis) string {
	if len(analyses) == 0 {
		return "## INFER — Root Cause Analysis\n\n✅ No correlated event groups to analyze."
	}

	lines := []string{"## INFER — Root Cause Analysis\n"}
	for _, a := range analyses {
		lines = append(lines,
			fmt.Sprintf("### %s Correlation `%s`", SeverityEmoji(string(a.Severity)), shortID(a.CorrelationID)),
			fmt.Sprintf("**Platforms:** %s", strings.Join(a.Platforms, ", ")),
		)
		if a.RCA != nil {
			lines = append(lines,
				fmt.Sprintf("\n**🎯 Root Cause:** %s", a.RCA.Name),
				fmt.Sprintf("**Confidence:** %.0f%%", a.RCA.Confidence*100),
				fmt.Sprintf("\n_%s_\n", a.RCA.RootCause),
				"**Recommended Actions:**",
			)
			for i, action := range a.RCA.RecommendedActions {
				lines = append(lines, fmt.Sprintf("%d. %s", i+1, action))
			}
		} else {
			lines = append(lines,
				"\n⚠️ No matching root cause template — manual investigation recommended.",
				"_Consider creating a new RCA template for this pattern._",
			)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// DetectAnomaliesTool surfaces frequency anomalies in the buffered
// telemetry streams.
type DetectAnomaliesTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewDetectAnomaliesTool creates a new tool instance
func NewDetectAnomaliesTool(engine *infer.Engine, logger *zap.Logger) *DetectAnomaliesTool {
	return &DetectAnomaliesTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *DetectAnomaliesTool) Name() string {
	return "infer_detect_anomalies"
}

// Description returns the tool description
func (t *DetectAnomaliesTool) Description() string {
	return `Detect anomalous patterns across all platform telemetry streams.

Uses statistical analysis to identify unusual event frequencies, traffic
patterns, and behavioral deviations.`
}

// Annotations returns tool hints for LLMs
func (t *DetectAnomaliesTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Detect Anomalies")
}

// InputSchema returns the input schema
func (t *DetectAnomaliesTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"lookback_minutes": map[string]interface{}{
				"type":        "integer",
				"minimum":     5,
				"maximum":     1440,
				"default":     60,
				"description": "How far back to look for anomalies",
			},
			"min_confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
				"default": 0.7,
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *DetectAnomaliesTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *DetectAnomaliesTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	lookback, err := GetIntParam(arguments, "lookback_minutes", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	minConfidence, err := getFloatDefault(arguments, "min_confidence", 0.7)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	lookback = clampInt(lookback, 60, 5, 1440)

	anomalies := t.engine.DetectAnomalies(lookback, minConfidence)
	return NewToolResultText(renderAnomalies(anomalies, lookback)), nil
}

func renderAnomalies(anomalies []infer.Anomaly, lookbackMinutes int) string {
	if len(anomalies) == 0 {
		return fmt.Sprintf("## INFER — Anomaly Detection\n\n✅ No anomalies detected in the last %d minutes.", lookbackMinutes)
	}

	lines := []string{fmt.Sprintf("## INFER — Anomaly Detection (%d found)\n", len(anomalies))}
	for _, a := range anomalies {
		lines = append(lines,
			fmt.Sprintf("### %s %s: %s", SeverityEmoji(a.Severity), a.Platform, a.EventType),
			fmt.Sprintf("**Pattern:** %s | **Confidence:** %.0f%%", a.Pattern, a.Confidence*100),
			fmt.Sprintf("_%s_", a.Description),
			fmt.Sprintf("Normal interval: %.1fs | Recent: %.1fs", a.MeanIntervalSeconds, a.RecentIntervalSeconds),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// PredictFailuresTool projects cascade and complex-incident risk from
// the current event window.
type PredictFailuresTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewPredictFailuresTool creates a new tool instance
func NewPredictFailuresTool(engine *infer.Engine, logger *zap.Logger) *PredictFailuresTool {
	return &PredictFailuresTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *PredictFailuresTool) Name() string {
	return "infer_predict_failures"
}

// Description returns the tool description
func (t *PredictFailuresTool) Description() string {
	return `Predict potential cascading failures based on current event patterns.

Analyzes the current event stream against known failure sequences to
identify risks before they cascade across platforms.`
}

// Annotations returns tool hints for LLMs
func (t *PredictFailuresTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Predict Failures")
}

// InputSchema returns the input schema
func (t *PredictFailuresTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"lookback_minutes": map[string]interface{}{
				"type":    "integer",
				"minimum": 5,
				"maximum": 240,
				"default": 30,
			},
			"include_history": map[string]interface{}{
				"type":        "boolean",
				"default":     true,
				"description": "Include historical incident data for pattern matching",
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *PredictFailuresTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *PredictFailuresTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	lookback, err := GetIntParam(arguments, "lookback_minutes", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	includeHistory, err := getBoolDefault(arguments, "include_history", true)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	lookback = clampInt(lookback, 30, 5, 240)

	predictions := t.engine.PredictFailures(lookback, includeHistory)
	return NewToolResultText(renderPredictions(predictions, lookback)), nil
}

func renderPredictions(predictions []infer.Prediction, lookbackMinutes int) string {
	if len(predictions) == 0 {
		return fmt.Sprintf("## INFER — Predictive Analysis\n\n✅ No failure predictions based on current %dm event window.", lookbackMinutes)
	}

	lines := []string{fmt.Sprintf("## INFER — Failure Predictions (%d risks)\n", len(predictions))}
	for _, p := range predictions {
		lines = append(lines,
			fmt.Sprintf("### %s %s", RiskEmoji(p.RiskLevel), titleWords(p.Type)),
			fmt.Sprintf("**Risk Level:** %s | **Confidence:** %.0f%%", p.RiskLevel, p.Confidence*100),
			fmt.Sprintf("**Time Horizon:** %d minutes", p.TimeHorizonMinutes),
			fmt.Sprintf("\n_%s_\n", p.Description),
			"**Preemptive Actions:**",
		)
		for i, action := range p.RecommendedPreemptiveActions {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, action))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// IncidentTimelineTool lists the incidents RCA has recorded, newest
// first.
type IncidentTimelineTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewIncidentTimelineTool creates a new tool instance
func NewIncidentTimelineTool(engine *infer.Engine, logger *zap.Logger) *IncidentTimelineTool {
	return &IncidentTimelineTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *IncidentTimelineTool) Name() string {
	return "infer_get_incident_timeline"
}

// Description returns the tool description
func (t *IncidentTimelineTool) Description() string {
	return "Get a timeline of all correlated incidents detected by INFER."
}

// Annotations returns tool hints for LLMs
func (t *IncidentTimelineTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Incident Timeline")
}

// InputSchema returns the input schema
func (t *IncidentTimelineTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"hours": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"maximum":     168,
				"default":     24,
				"description": "How many hours of history to show",
			},
			"min_severity": map[string]interface{}{
				"type":    "string",
				"default": "info",
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *IncidentTimelineTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *IncidentTimelineTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	hours, err := GetIntParam(arguments, "hours", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	minSeverity, err := GetStringParam(arguments, "min_severity", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	hours = clampInt(hours, 24, 1, 168)
	if minSeverity == "" {
		minSeverity = "info"
	}

	incidents := t.engine.Timeline(hours, minSeverity)
	return NewToolResultText(renderTimeline(incidents, hours)), nil
}

func renderTimeline(incidents []infer.Incident, hours int) string {
	if len(incidents) == 0 {
		return fmt.Sprintf("## INFER — Incident Timeline\n\n✅ No incidents in the last %dh.", hours)
	}

	lines := []string{fmt.Sprintf("## INFER — Incident Timeline (last %dh, %d incidents)\n", hours, len(incidents))}
	for _, inc := range incidents {
		name := inc.RCA.Name
		if name == "" {
			name = "Unknown Pattern"
		}
		lines = append(lines, fmt.Sprintf("- %s **%s** — %s (%s) [%s]",
			SeverityEmoji(string(inc.Severity)),
			RelativeTime(inc.Timestamp),
			name,
			strings.Join(inc.Platforms, ", "),
			inc.Severity,
		))
	}
	return strings.Join(lines, "\n")
}

// NetworkRiskScoreTool computes the composite 0-100 network risk
// score.
type NetworkRiskScoreTool struct {
	*BaseTool
	engine *infer.Engine
}

// NewNetworkRiskScoreTool creates a new tool instance
func NewNetworkRiskScoreTool(engine *infer.Engine, logger *zap.Logger) *NetworkRiskScoreTool {
	return &NetworkRiskScoreTool{BaseTool: NewBaseTool(logger), engine: engine}
}

// Name returns the tool name
func (t *NetworkRiskScoreTool) Name() string {
	return "infer_network_risk_score"
}

// Description returns the tool description
func (t *NetworkRiskScoreTool) Description() string {
	return `Calculate a network-wide risk score based on current events, anomalies, and predictions.

Produces a 0-100 score where:
- 0-25:  Low risk — normal operations
- 26-50: Moderate — minor issues detected
- 51-75: Elevated — active incidents or significant anomalies
- 76-100: Critical — cascading failures or security incidents`
}

// Annotations returns tool hints for LLMs
func (t *NetworkRiskScoreTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Network Risk Score")
}

// InputSchema returns the input schema
func (t *NetworkRiskScoreTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"include_predictions": map[string]interface{}{
				"type":    "boolean",
				"default": true,
			},
			"include_anomalies": map[string]interface{}{
				"type":    "boolean",
				"default": true,
			},
		},
		"additionalProperties": false,
	}
}

// DefaultTimeout returns the recommended timeout
func (t *NetworkRiskScoreTool) DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// Execute executes the tool
func (t *NetworkRiskScoreTool) Execute(_ context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	includePredictions, err := getBoolDefault(arguments, "include_predictions", true)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	includeAnomalies, err := getBoolDefault(arguments, "include_anomalies", true)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	breakdown := t.engine.RiskScore(includeAnomalies, includePredictions)
	return NewToolResultText(renderRiskScore(breakdown)), nil
}

func tierEmoji(tier string) string {
	switch tier {
	case "LOW":
		return "🟢"
	case "MODERATE":
		return "🟡"
	case "ELEVATED":
		return "🟠"
	default:
		return "🔴"
	}
}

func renderRiskScore(b infer.RiskBreakdown) string {
	return fmt.Sprintf(`## INFER — Network Risk Score

%s **%.0f/100** — %s

**Score Breakdown:**
- Events (last 1h): %.0f/60 (%d events)
- Anomalies: %.0f/20
- Predictions: %.0f/20

**Active Platforms:** %d
**Event Buffer Size:** %d
**Historical Incidents:** %d
`,
		tierEmoji(b.Tier), b.Total, b.Tier,
		b.EventScore, b.EventCount,
		b.AnomalyScore,
		b.PredictionScore,
		b.ActivePlatforms,
		b.BufferSize,
		b.IncidentCount,
	)
}
