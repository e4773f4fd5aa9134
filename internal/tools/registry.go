package tools

import (
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/fanout"
	"github.com/netopscore/netops-gateway/internal/infer"
)

// GetAllTools returns all gateway MCP tools organized by category.
// This factory function centralizes tool creation and makes it easy to
// add new tools or modify tool registration.
func GetAllTools(gateway *fanout.Engine, reasoner *infer.Engine, logger *zap.Logger) []Tool {
	// Role meta-tools (one per gateway role)
	all := NewRoleFanOutTools(gateway, logger)

	all = append(all,
		// Gateway status tools
		NewNetworkStatusTool(gateway, logger),
		NewGatewayHealthTool(gateway, logger),

		// INFER analytics tools
		NewCorrelateEventsTool(reasoner, logger),
		NewRootCauseAnalysisTool(reasoner, logger),
		NewDetectAnomaliesTool(reasoner, logger),
		NewPredictFailuresTool(reasoner, logger),
		NewIncidentTimelineTool(reasoner, logger),
		NewNetworkRiskScoreTool(reasoner, logger),
	)
	return all
}

// GetToolCount returns the total number of registered tools.
// Useful for metrics and logging.
func GetToolCount() int {
	return 14 // Update this when adding new tools
}
