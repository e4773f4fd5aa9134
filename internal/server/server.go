// Package server assembles the gateway: the MCP surface (tools, prompts,
// resources), the routing refresh loop, event-bus ingest, and the health
// endpoint, with one lifecycle tying them together.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/audit"
	"github.com/netopscore/netops-gateway/internal/auth"
	"github.com/netopscore/netops-gateway/internal/bus"
	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/directory"
	"github.com/netopscore/netops-gateway/internal/fanout"
	"github.com/netopscore/netops-gateway/internal/forward"
	"github.com/netopscore/netops-gateway/internal/health"
	"github.com/netopscore/netops-gateway/internal/infer"
	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/prompts"
	"github.com/netopscore/netops-gateway/internal/resources"
	"github.com/netopscore/netops-gateway/internal/routing"
	"github.com/netopscore/netops-gateway/internal/session"
	"github.com/netopscore/netops-gateway/internal/tools"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Server represents the gateway MCP server
type Server struct {
	mcpServer *mcp.Server
	config    *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	version   string

	bus          *bus.Bus
	directory    *directory.Client
	router       *routing.Router
	refresher    *routing.Refresher
	gateway      *fanout.Engine
	reasoner     *infer.Engine
	session      *session.Context
	healthServer *health.Server

	tracingShutdown func(context.Context) error

	// cid is the directory registration handle, possibly a sentinel
	// when the directory was unreachable at startup
	cid string
}

// New creates a new gateway server instance.
func New(cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	metricsTracker := metrics.New(logger)

	tracingShutdown, err := tracing.InitOTel(tracing.OTelConfig{
		ServiceName:    "netops-gateway",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Event bus for telemetry ingest and approval publication
	eventBus, err := bus.New(cfg.RedisURL, logger, metricsTracker)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	// Directory client with the configured auth mode
	authenticator, err := auth.New(cfg.DirectoryAuthMode, cfg.DirectoryToken, cfg.DirectoryUsername, cfg.DirectoryPassword, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory authenticator: %w", err)
	}
	dir, err := directory.New(cfg, logger, version, authenticator)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory client: %w", err)
	}

	// Routing table plus its periodic refresh loop
	router := routing.NewRouter(logger)
	refresher := routing.NewRefresher(router, dir, cfg.RefreshInterval, logger, metricsTracker)

	// Fan-out engine: forwarder, approval publication, audit trail
	forwarder := forward.New(cfg.ForwardTimeout, logger, metricsTracker)
	auditLog := audit.NewLogger(logger, cfg.EnableAuditLog)
	gateway := fanout.New(router, forwarder, eventBus, auditLog, version, logger, metricsTracker)

	// Embedded reasoning engine fed from the event bus
	reasoner := infer.NewEngine(cfg, logger, metricsTracker)

	// Create MCP server with tools, prompts, and resources capabilities
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NetOps Gateway MCP Server",
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	s := &Server{
		mcpServer:       mcpServer,
		config:          cfg,
		logger:          logger,
		metrics:         metricsTracker,
		version:         version,
		bus:             eventBus,
		directory:       dir,
		router:          router,
		refresher:       refresher,
		gateway:         gateway,
		reasoner:        reasoner,
		session:         session.New(),
		tracingShutdown: tracingShutdown,
	}

	// Create health server if port is configured (port > 0)
	if cfg.GatewayPort > 0 {
		healthChecker := health.New(eventBus, dir, router, logger)
		s.healthServer = health.NewServer(healthChecker, logger, cfg.GatewayPort, "0.0.0.0", cfg.MetricsEndpoint)
	}

	// Register all tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	// Register all prompts
	s.registerPrompts()

	// Register all resources
	s.registerResources()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() error {
	all := tools.GetAllTools(s.gateway, s.reasoner, s.logger)
	for _, t := range all {
		s.registerTool(t)
	}

	s.logger.Info("Registered all MCP tools", zap.Int("count", len(all)))
	return nil
}

// registerTool is a helper to register a tool with proper error handling.
// It accepts any type that implements the tools.Tool interface.
func (s *Server) registerTool(t tools.Tool) {
	toolName := t.Name()

	// Create tool definition with annotations
	mcpTool := &mcp.Tool{
		Name:        toolName,
		Description: t.Description(),
		InputSchema: t.InputSchema(),
		Annotations: t.Annotations(),
	}

	// Create handler that calls the tool's Execute method with metrics tracking
	handler := func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		ctx, span := tracing.ToolSpan(ctx, toolName)
		defer span.End()

		// Attribute the call so audit entries carry the session's caller
		ctx = tools.WithCaller(ctx, s.session.GetCaller())

		// Fan-out tools wait on the slowest backend and declare their
		// own ceiling
		if d := t.DefaultTimeout(); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		var args map[string]interface{}
		if len(request.Params.Arguments) > 0 {
			if err := json.Unmarshal(request.Params.Arguments, &args); err != nil {
				s.metrics.RecordToolExecution(toolName, false, time.Since(start))
				tracing.RecordError(span, err)
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
		}

		result, err := t.Execute(ctx, args)
		success := err == nil && (result == nil || !result.IsError)
		s.metrics.RecordToolExecution(toolName, success, time.Since(start))
		if err != nil {
			tracing.RecordError(span, err)
		} else if success {
			tracing.SetSuccess(span)
		}

		s.session.RecordCall(session.CallInfo{
			Tool:        toolName,
			HasFindings: success,
		})
		if err != nil {
			s.session.RecordError(toolName, err.Error(), "")
		}
		if next := s.session.SuggestNextTools(); len(next) > 0 {
			s.logger.Debug("Suggested follow-up tools",
				zap.String("after", toolName),
				zap.Strings("tools", next),
			)
		}

		return result, err
	}

	// Register tool with MCP server
	s.mcpServer.AddTool(mcpTool, handler)
	s.logger.Debug("Registered tool", zap.String("tool", mcpTool.Name))
}

// registerPrompts registers all available MCP prompts
func (s *Server) registerPrompts() {
	registry := prompts.NewRegistry(s.logger)

	for _, p := range registry.GetPrompts() {
		s.mcpServer.AddPrompt(p.Prompt, p.Handler)
		s.logger.Debug("Registered prompt", zap.String("prompt", p.Prompt.Name))
	}

	s.logger.Info("Registered all MCP prompts", zap.Int("count", len(registry.GetPrompts())))
}

// registerResources registers all available MCP resources and resource templates
func (s *Server) registerResources() {
	registry := resources.NewRegistry(s.config, s.router, s.reasoner, s.metrics, s.logger, s.version)

	// Register static resources
	for _, r := range registry.GetResources() {
		s.mcpServer.AddResource(r.Resource, r.Handler)
		s.logger.Debug("Registered resource", zap.String("uri", r.Resource.URI))
	}

	// Register resource templates for dynamic resource access
	templateHandler := registry.GetTemplateHandler()
	for _, t := range registry.GetResourceTemplates() {
		s.mcpServer.AddResourceTemplate(&t, templateHandler)
		s.logger.Debug("Registered resource template", zap.String("uri_template", t.URITemplate))
	}

	s.logger.Info("Registered all MCP resources",
		zap.Int("static_count", len(registry.GetResources())),
		zap.Int("template_count", len(registry.GetResourceTemplates())),
	)
}

// subscribeIngest points the reasoning engine at every ingest channel:
// correlated events, security alerts, and the per-platform telemetry
// streams.
func (s *Server) subscribeIngest(ctx context.Context) {
	sub := func(channel string, h bus.Handler) {
		if err := s.bus.Subscribe(ctx, channel, h); err != nil {
			s.logger.Error("Subscription failed", zap.String("channel", channel), zap.Error(err))
		}
	}

	sub(bus.ChannelEventsCorrelated, s.reasoner.HandleCorrelatedEvent)
	sub(bus.ChannelAlertsSecurity, s.reasoner.HandleSecurityAlert)
	for _, p := range model.AllPlatforms() {
		sub(bus.TelemetryChannel(string(p)), s.reasoner.HandleCorrelatedEvent)
	}

	s.logger.Info("Subscribed ingest channels",
		zap.Int("count", 2+len(model.AllPlatforms())),
	)
}

// selfRecord describes the gateway's embedded analytics surface for
// directory registration so other agents can discover it. The record
// deliberately carries no capabilities: listing the infer tools here
// would put the gateway in its own routing table and make role fan-out
// forward to itself.
func (s *Server) selfRecord() *model.BackendRecord {
	return &model.BackendRecord{
		Name:        "netops_gateway",
		Version:     s.version,
		Description: "Cross-platform intelligence gateway: event correlation, root cause analysis, anomaly detection, and predictive failure analysis",
		Platform:    model.PlatformInfer,
		Roles:       []model.Role{model.RoleObservability, model.RoleSecurity, model.RoleCompliance},
		Skills: []string{
			"cross_platform_correlation",
			"root_cause_analysis",
			"anomaly_detection",
			"predictive_analysis",
			"capacity_planning",
		},
		Domains:   []string{"intelligence", "analytics", "security", "assurance"},
		Transport: "stdio",
		Endpoint:  fmt.Sprintf("http://netops-gateway:%d", s.config.GatewayPort),
	}
}

// Start starts the MCP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server", zap.String("version", s.version))

	// Derive a cancellable context so background loops exit even when
	// the run loop returns on stdin EOF rather than cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer s.shutdown()
	defer cancel()

	// Routing comes up first so tool calls can route immediately;
	// the initial build seeds a static fallback when discovery is empty
	s.refresher.Start(ctx)

	// Event ingest
	s.subscribeIngest(ctx)
	s.bus.Start(ctx)

	// Announce the gateway itself; a sentinel cid means standalone mode
	s.cid = s.directory.Register(ctx, s.selfRecord())

	// Start health HTTP server if configured
	if s.healthServer != nil {
		if err := s.healthServer.Start(); err != nil {
			return err
		}
		// Ready only after the initial routing table build above
		s.healthServer.SetReady(true)
	}

	// Start serving using stdio transport
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// shutdown releases everything Start acquired, bounded by the
// configured shutdown timeout.
func (s *Server) shutdown() {
	s.metrics.LogStats()
	s.logger.Info("Session summary", zap.Any("session", s.session.GetStats()))

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if !s.directory.Deregister(shutdownCtx, s.cid) {
		s.logger.Warn("Deregistration failed", zap.String("cid", s.cid))
	}

	s.refresher.Stop()

	if s.healthServer != nil {
		s.healthServer.SetReady(false)
		if err := s.healthServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown health server", zap.Error(err))
		}
	}

	if err := s.bus.Close(); err != nil {
		s.logger.Error("Failed to close event bus", zap.Error(err))
	}
	if err := s.directory.Close(); err != nil {
		s.logger.Error("Failed to close directory client", zap.Error(err))
	}
	if err := s.tracingShutdown(shutdownCtx); err != nil {
		s.logger.Warn("Failed to flush tracing", zap.Error(err))
	}

	s.logger.Info("Gateway stopped")
}

// GetMetrics returns the server's metrics tracker for external access
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}
