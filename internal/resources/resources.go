// Package resources provides MCP resource handlers for the gateway.
// Resources expose read-only gateway state to MCP clients: the RCA
// template catalog, the live routing table, the platform taxonomy, and
// server configuration, metrics, and health.
package resources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/infer"
	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/routing"
)

// Registry holds all registered resources and their handlers
type Registry struct {
	config   *config.Config
	router   *routing.Router
	reasoner *infer.Engine
	metrics  *metrics.Metrics
	logger   *zap.Logger
	version  string
}

// NewRegistry creates a new resource registry
func NewRegistry(cfg *config.Config, router *routing.Router, reasoner *infer.Engine, m *metrics.Metrics, logger *zap.Logger, version string) *Registry {
	return &Registry{
		config:   cfg,
		router:   router,
		reasoner: reasoner,
		metrics:  m,
		logger:   logger,
		version:  version,
	}
}

// RegisteredResource represents a resource with its definition and handler
type RegisteredResource struct {
	Resource *mcp.Resource
	Handler  mcp.ResourceHandler
}

// GetResources returns all registered resources with their handlers
func (r *Registry) GetResources() []RegisteredResource {
	return []RegisteredResource{
		r.rcaTemplatesResource(),
		r.backendsResource(),
		r.platformsResource(),
		r.configResource(),
		r.metricsResource(),
		r.healthResource(),
	}
}

// rcaTemplatesResource returns the netops://rca/templates resource
func (r *Registry) rcaTemplatesResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "netops://rca/templates",
			Name:        "netops://rca/templates",
			Title:       "Root Cause Template Catalog",
			Description: "Declarative multi-platform failure patterns matched by root cause analysis, with required signals and recommended actions",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			catalog := r.reasoner.Catalog()

			catalogData := map[string]interface{}{
				"template_count": len(catalog),
				"templates":      catalog,
				"custom_catalog": r.config.RCATemplateFile != "",
			}

			content, err := json.MarshalIndent(catalogData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal RCA catalog", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "netops://rca/templates",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// backendsResource returns the netops://routing/backends resource
func (r *Registry) backendsResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "netops://routing/backends",
			Name:        "netops://routing/backends",
			Title:       "Connected Platform Backends",
			Description: "Live routing table snapshot: registered backend servers, their endpoints, and the tools each one serves",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			table := r.router.Table()

			toolsByBackend := make(map[string][]string)
			for _, e := range table.Entries() {
				toolsByBackend[e.Backend] = append(toolsByBackend[e.Backend], e.Capability.ToolName)
			}

			endpoints := table.AllEndpoints()
			backends := make([]map[string]interface{}, 0, table.ServerCount())
			for _, name := range table.Servers() {
				tools := toolsByBackend[name]
				if tools == nil {
					tools = []string{}
				}
				backends = append(backends, map[string]interface{}{
					"name":       name,
					"endpoint":   endpoints[name],
					"tool_count": len(tools),
					"tools":      tools,
				})
			}

			routingData := map[string]interface{}{
				"server_count": table.ServerCount(),
				"tool_count":   table.ToolCount(),
				"built_at":     table.BuiltAt().Format(time.RFC3339),
				"backends":     backends,
			}

			content, err := json.MarshalIndent(routingData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal routing table", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "netops://routing/backends",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// platformsResource returns the netops://reference/platforms resource
func (r *Registry) platformsResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "netops://reference/platforms",
			Name:        "netops://reference/platforms",
			Title:       "Platform and Role Taxonomy",
			Description: "Supported platforms, gateway roles, and the severity ranking used for routing and correlation",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			platforms := make([]string, 0, len(model.AllPlatforms()))
			for _, p := range model.AllPlatforms() {
				platforms = append(platforms, string(p))
			}

			roles := make([]string, 0, len(model.AllRoles()))
			for _, role := range model.AllRoles() {
				roles = append(roles, string(role))
			}

			severities := make([]map[string]interface{}, 0, 5)
			for _, s := range []model.Severity{
				model.SeverityCritical,
				model.SeverityHigh,
				model.SeverityMedium,
				model.SeverityLow,
				model.SeverityInfo,
			} {
				severities = append(severities, map[string]interface{}{
					"name": string(s),
					"rank": s.Rank(),
				})
			}

			taxonomy := map[string]interface{}{
				"platforms":  platforms,
				"roles":      roles,
				"severities": severities,
			}

			content, err := json.MarshalIndent(taxonomy, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal taxonomy", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "netops://reference/platforms",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// configResource returns the config://current resource
func (r *Registry) configResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "config://current",
			Name:        "config://current",
			Title:       "Gateway Configuration",
			Description: "Current gateway configuration (sensitive values masked)",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			cfg := r.config.Redact()

			safeConfig := map[string]interface{}{
				"directory_url":              cfg.DirectoryURL,
				"directory_auth_mode":        cfg.DirectoryAuthMode,
				"directory_token_configured": r.config.DirectoryToken != "",
				"redis_url":                  cfg.RedisURL,
				"gateway_port":               cfg.GatewayPort,
				"correlation_window_seconds": cfg.CorrelationWindowSeconds,
				"anomaly_sensitivity":        cfg.AnomalySensitivity,
				"event_buffer_capacity":      cfg.EventBufferCapacity,
				"rca_template_file":          cfg.RCATemplateFile,
				"refresh_interval":           cfg.RefreshInterval.String(),
				"forward_timeout":            cfg.ForwardTimeout.String(),
				"timeout":                    cfg.Timeout.String(),
				"max_retries":                cfg.MaxRetries,
				"rate_limit":                 cfg.RateLimit,
				"rate_limit_burst":           cfg.RateLimitBurst,
				"rate_limit_enabled":         cfg.EnableRateLimit,
				"tracing_enabled":            cfg.EnableTracing,
				"audit_log_enabled":          cfg.EnableAuditLog,
				"metrics_endpoint":           cfg.MetricsEndpoint,
				"shutdown_timeout":           cfg.ShutdownTimeout.String(),
				"log_level":                  cfg.LogLevel,
				"environment":                cfg.Environment,
				"server_version":             r.version,
			}

			content, err := json.MarshalIndent(safeConfig, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal config", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "config://current",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// metricsResource returns the metrics://server resource
func (r *Registry) metricsResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "metrics://server",
			Name:        "metrics://server",
			Title:       "Gateway Metrics",
			Description: "Operational metrics including forward counts, latency, event bus volume, and tool usage statistics",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			stats := r.metrics.GetStats()

			metricsData := map[string]interface{}{
				"forwards": map[string]interface{}{
					"total":      stats.TotalForwards,
					"successful": stats.SuccessfulForwards,
					"failed":     stats.FailedForwards,
					"retried":    stats.RetriedForwards,
				},
				"rate_limiting": map[string]interface{}{
					"hits": stats.RateLimitHits,
				},
				"latency": map[string]interface{}{
					"average_ms": stats.AverageLatency.Milliseconds(),
					"max_ms":     stats.MaxLatency.Milliseconds(),
					"min_ms":     stats.MinLatency.Milliseconds(),
				},
				"errors_by_status": stats.ErrorsByStatus,
				"events": map[string]interface{}{
					"published":        stats.EventsPublished,
					"received":         stats.EventsReceived,
					"publish_failures": stats.PublishFailures,
				},
				"routing": map[string]interface{}{
					"refreshes":        stats.RoutingRefreshes,
					"refresh_failures": stats.RoutingRefreshFailures,
				},
				"tools": map[string]interface{}{
					"usage":   stats.ToolUsage,
					"errors":  stats.ToolErrors,
					"latency": formatToolLatency(stats.ToolLatency),
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}

			content, err := json.MarshalIndent(metricsData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal metrics", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "metrics://server",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// healthResource returns the health://status resource
func (r *Registry) healthResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "health://status",
			Name:        "health://status",
			Title:       "Health Status",
			Description: "Current health status of the gateway and its routing table",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			stats := r.metrics.GetStats()
			table := r.router.Table()

			var status string
			var statusMessage string
			errorRate := float64(0)
			if stats.TotalForwards > 0 {
				errorRate = float64(stats.FailedForwards) / float64(stats.TotalForwards) * 100
			}

			if errorRate > 50 {
				status = "unhealthy"
				statusMessage = "High backend error rate detected"
			} else if errorRate > 10 {
				status = "degraded"
				statusMessage = "Elevated backend error rate"
			} else {
				status = "healthy"
				statusMessage = "All systems operational"
			}

			healthData := map[string]interface{}{
				"status":  status,
				"message": statusMessage,
				"details": map[string]interface{}{
					"error_rate_percent": errorRate,
					"total_forwards":     stats.TotalForwards,
					"failed_forwards":    stats.FailedForwards,
					"rate_limit_hits":    stats.RateLimitHits,
				},
				"routing_table": map[string]interface{}{
					"servers":  table.ServerCount(),
					"tools":    table.ToolCount(),
					"built_at": table.BuiltAt().Format(time.RFC3339),
				},
				"server": map[string]interface{}{
					"version":     r.version,
					"environment": r.config.Environment,
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}

			content, err := json.MarshalIndent(healthData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal health status", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "health://status",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// formatToolLatency converts time.Duration map to milliseconds for JSON
func formatToolLatency(latency map[string]time.Duration) map[string]int64 {
	result := make(map[string]int64, len(latency))
	for tool, duration := range latency {
		result[tool] = duration.Milliseconds()
	}
	return result
}

// GetResourceTemplates returns resource templates for payloads clients
// publish toward the gateway: telemetry events and directory records.
func (r *Registry) GetResourceTemplates() []mcp.ResourceTemplate {
	return []mcp.ResourceTemplate{
		{
			URITemplate: "template://event/{platform}",
			Name:        "Telemetry Event Template",
			Description: "Template for telemetry event envelopes consumed by the correlation engine. Publish events matching this shape to the telemetry channel for the named platform.",
			MIMEType:    "application/json",
		},
		{
			URITemplate: "template://backend/{name}",
			Name:        "Backend Registration Template",
			Description: "Template for backend directory records. Register a record matching this shape and the gateway picks up its tools on the next routing refresh.",
			MIMEType:    "application/json",
		},
	}
}

// GetTemplateHandler returns a handler for resource templates
func (r *Registry) GetTemplateHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI

		var content map[string]interface{}

		switch {
		case matchTemplate(uri, "template://event/"):
			platform := extractTemplateName(uri, "template://event/")
			content = getEventTemplate(platform)
		case matchTemplate(uri, "template://backend/"):
			name := extractTemplateName(uri, "template://backend/")
			content = getBackendTemplate(name)
		default:
			content = map[string]interface{}{
				"error": "Unknown template type",
				"available_templates": []string{
					"template://event/{platform}",
					"template://backend/{name}",
				},
			}
		}

		jsonContent, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			r.logger.Error("Failed to marshal template", zap.Error(err))
			return nil, err
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(jsonContent),
				},
			},
		}, nil
	}
}

func matchTemplate(uri, prefix string) bool {
	return len(uri) > len(prefix) && uri[:len(prefix)] == prefix
}

func extractTemplateName(uri, prefix string) string {
	return uri[len(prefix):]
}

// getEventTemplate returns a telemetry event envelope template
func getEventTemplate(platform string) map[string]interface{} {
	return map[string]interface{}{
		"_template_info": map[string]interface{}{
			"description": "Telemetry event envelope for the correlation engine",
			"usage":       "Publish to the telemetry channel for this platform; correlated groups are announced on the correlated-events channel",
			"platform":    platform,
		},
		"event": map[string]interface{}{
			"event_id":          "<unique event id>",
			"source_platform":   platform,
			"event_type":        "path_loss",
			"severity":          "medium",
			"timestamp":         time.Now().UTC().Format(time.RFC3339),
			"affected_entities": []string{"site-a", "wan-link-1"},
			"raw_data": map[string]interface{}{
				"loss_percent": 12.5,
			},
		},
		"_severity_levels": []string{"critical", "high", "medium", "low", "info"},
	}
}

// getBackendTemplate returns a backend directory record template
func getBackendTemplate(name string) map[string]interface{} {
	return map[string]interface{}{
		"_template_info": map[string]interface{}{
			"description": "Backend registration record for the MCP directory",
			"usage":       "Register this record with the directory; the gateway rebuilds its routing table on the next refresh",
			"name":        name,
		},
		"record": map[string]interface{}{
			"name":        name,
			"version":     "1.0.0",
			"description": "Platform MCP server",
			"attributes": map[string]interface{}{
				"platform":  "meraki",
				"roles":     []string{"observability"},
				"transport": "streamable_http",
				"endpoint":  "http://meraki-mcp:8002",
			},
			"skills":  []string{},
			"domains": []string{"network-operations"},
			"modules": map[string]interface{}{
				"mcp_server": map[string]interface{}{
					"tools": []map[string]interface{}{
						{
							"name":        "meraki_health",
							"description": "Organization-wide device health summary",
							"roles":       []string{"observability"},
							"read_only":   true,
						},
						{
							"name":              "meraki_reboot_device",
							"description":       "Reboot a device by serial",
							"roles":             []string{"automation"},
							"read_only":         false,
							"destructive":       true,
							"requires_approval": true,
						},
					},
				},
			},
			"metadata": map[string]interface{}{},
		},
	}
}
