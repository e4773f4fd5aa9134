package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/bus"
	"github.com/netopscore/netops-gateway/internal/directory"
	"github.com/netopscore/netops-gateway/internal/routing"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check result
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Checker performs health checks against the gateway's dependencies
type Checker struct {
	bus       *bus.Bus
	directory *directory.Client
	router    *routing.Router
	logger    *zap.Logger
}

// New creates a new health checker
func New(b *bus.Bus, d *directory.Client, r *routing.Router, logger *zap.Logger) *Checker {
	return &Checker{
		bus:       b,
		directory: d,
		router:    r,
		logger:    logger,
	}
}

// CheckAll performs all health checks
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	checks := []Check{
		c.checkBus(ctx),
		c.checkDirectory(ctx),
		c.checkRouting(),
	}

	// Determine overall status
	overallStatus := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return overallStatus, checks
}

// checkBus verifies the event bus connection. A broken bus degrades the
// gateway (ingest and approvals stop) but forwarding keeps working, so
// this never reports unhealthy.
func (c *Checker) checkBus(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "event_bus",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.bus.Ping(checkCtx)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Event bus unreachable: %v", err)
		c.logger.Warn("Health check failed: event bus",
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	} else {
		check.Status = StatusHealthy
		check.Message = "Event bus reachable"
		c.logger.Debug("Health check passed: event bus",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}

// checkDirectory verifies the backend directory is reachable. The routing
// table keeps serving its last snapshot (or the static fallback) when the
// directory is down, so this degrades rather than fails the gateway.
func (c *Checker) checkDirectory(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "directory",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok := c.directory.Health(checkCtx)
	check.Duration = time.Since(start)

	if !ok {
		check.Status = StatusDegraded
		check.Message = "Directory unreachable, routing table may be stale"
		c.logger.Warn("Health check failed: directory",
			zap.Duration("duration", check.Duration),
		)
	} else {
		check.Status = StatusHealthy
		check.Message = "Directory reachable"
		c.logger.Debug("Health check passed: directory",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}

// checkRouting verifies the routing table has at least one backend. An
// empty table means no tool call can be forwarded anywhere.
func (c *Checker) checkRouting() Check {
	start := time.Now()
	check := Check{
		Name:      "routing_table",
		Timestamp: start,
	}

	table := c.router.Table()
	check.Duration = time.Since(start)

	if table.ServerCount() == 0 {
		check.Status = StatusUnhealthy
		check.Message = "Routing table is empty, no backends available"
		c.logger.Error("Health check failed: routing table empty")
	} else {
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("%d backends, %d tools routable", table.ServerCount(), table.ToolCount())
		c.logger.Debug("Health check passed: routing table",
			zap.Int("servers", table.ServerCount()),
			zap.Int("tools", table.ToolCount()),
		)
	}

	return check
}
