package routing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Directory is the discovery surface the refresher needs
type Directory interface {
	Discover(ctx context.Context, skills []string, roles []model.Role, platform model.Platform) []model.BackendRecord
}

// Refresher rebuilds the routing table from directory discovery on a
// fixed interval. A failed or empty discovery keeps the previous table.
type Refresher struct {
	router    *Router
	directory Directory
	interval  time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
	done      chan struct{}
	started   bool
}

// NewRefresher creates a refresher. Metrics may be nil.
func NewRefresher(router *Router, directory Directory, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Refresher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Refresher{
		router:    router,
		directory: directory,
		interval:  interval,
		logger:    logger.Named("routing"),
		metrics:   m,
		done:      make(chan struct{}),
	}
}

// RefreshOnce runs a single discovery and swaps the table when the
// response is non-empty. Returns whether a swap happened.
func (f *Refresher) RefreshOnce(ctx context.Context) bool {
	ctx, span := tracing.DirectorySpan(ctx, "discover")
	defer span.End()

	records := f.directory.Discover(ctx, nil, nil, "")
	if len(records) == 0 {
		f.logger.Warn("Discovery returned no records, keeping current table")
		f.recordRefresh(false)
		return false
	}

	valid := records[:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			f.logger.Warn("Skipping invalid record", zap.Error(err))
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		f.logger.Warn("All discovered records invalid, keeping current table")
		f.recordRefresh(false)
		return false
	}

	f.router.Swap(Build(valid))
	f.recordRefresh(true)
	return true
}

// Start performs the initial table build and launches the periodic
// refresh loop. When the first discovery comes back empty, the table is
// seeded from the static fallback so the gateway can route immediately.
func (f *Refresher) Start(ctx context.Context) {
	if !f.RefreshOnce(ctx) {
		fallback := StaticFallback()
		f.router.Swap(Build(fallback))
		f.logger.Info("Using static fallback routing",
			zap.Int("backends", len(fallback)),
		)
	}

	f.started = true
	go f.loop(ctx)
}

func (f *Refresher) loop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("Refresh loop stopped")
			return
		case <-ticker.C:
			f.RefreshOnce(ctx)
		}
	}
}

// Stop waits for the refresh loop to exit. The loop itself stops when
// the context given to Start is cancelled.
func (f *Refresher) Stop() {
	if f.started {
		<-f.done
	}
}

func (f *Refresher) recordRefresh(success bool) {
	if f.metrics == nil {
		return
	}
	t := f.router.Table()
	f.metrics.RecordRoutingRefresh(success, t.ServerCount(), t.ToolCount())
}
