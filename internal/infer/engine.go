package infer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/cache"
	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/model"
)

const (
	maxIncidentHistory = 1000
	maxAnomalyLog      = 500
	dedupeWindow       = 5 * time.Minute
	dedupeCacheSize    = 20000
)

// Incident is one recorded root-cause match, retained for the timeline
// and for future pattern matching.
type Incident struct {
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	RCA           RCAResult      `json:"rca"`
	Platforms     []string       `json:"platforms"`
	Severity      model.Severity `json:"severity"`
}

// GroupAnalysis pairs a correlation group with its template match, if
// any.
type GroupAnalysis struct {
	Group
	RCA *RCAResult
}

// Engine owns the ingest buffer and the derived analytics state. All
// methods are safe for concurrent use; analytics operate on snapshots.
type Engine struct {
	buffer      *Buffer
	deduper     *cache.Deduper
	catalog     []Template
	window      int
	sensitivity float64
	logger      *zap.Logger
	metrics     *metrics.Metrics

	mu         sync.Mutex
	history    []Incident
	anomalyLog []Anomaly
}

// NewEngine builds the reasoning engine from configuration. The RCA
// catalog comes from RCA_TEMPLATE_FILE when set and valid, otherwise
// the embedded default catalog. Metrics may be nil.
func NewEngine(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Engine {
	log := logger.Named("infer")

	catalog := DefaultCatalog()
	if cfg.RCATemplateFile != "" {
		loaded, err := LoadCatalog(cfg.RCATemplateFile)
		if err != nil {
			log.Warn("Using embedded RCA catalog", zap.Error(err))
		} else {
			log.Info("Loaded RCA catalog",
				zap.String("file", cfg.RCATemplateFile),
				zap.Int("templates", len(loaded)),
			)
			catalog = loaded
		}
	}

	window := cfg.CorrelationWindowSeconds
	if window <= 0 {
		window = 300
	}
	sensitivity := cfg.AnomalySensitivity
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = 0.85
	}

	return &Engine{
		buffer:      NewBuffer(cfg.EventBufferCapacity),
		deduper:     cache.NewDeduper(dedupeWindow, dedupeCacheSize),
		catalog:     catalog,
		window:      window,
		sensitivity: sensitivity,
		logger:      log,
		metrics:     m,
	}
}

// Ingest appends an event to the buffer unless its ID was already seen
// recently. Bus delivery is at-least-once; duplicates would double-count
// in the risk score.
func (e *Engine) Ingest(ev model.Event) bool {
	if e.deduper.Seen(ev.EventID) {
		e.logger.Debug("Dropping duplicate event", zap.String("event_id", ev.EventID))
		return false
	}

	e.buffer.Append(ev)
	if e.metrics != nil {
		e.metrics.RecordIngest(string(ev.SourcePlatform))
	}
	return true
}

// HandleCorrelatedEvent is the bus handler for telemetry channels
func (e *Engine) HandleCorrelatedEvent(_ context.Context, channel string, data map[string]interface{}) error {
	ev, err := model.EventFromPayload(data)
	if err != nil {
		e.logger.Error("Failed to ingest event",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return err
	}
	e.Ingest(ev)
	return nil
}

// HandleSecurityAlert is the bus handler for the security alert
// channel. Alert envelopes may be partial; missing fields default
// rather than dropping the alert.
func (e *Engine) HandleSecurityAlert(_ context.Context, _ string, data map[string]interface{}) error {
	e.Ingest(model.EventFromSecurityAlert(data))
	return nil
}

// Correlate runs the grouping over the current buffer. A zero window
// uses the configured default; minSeverity "low" (the default) applies
// no filter.
func (e *Engine) Correlate(windowSeconds int, minSeverity string, platforms []string) []Group {
	if windowSeconds <= 0 {
		windowSeconds = e.window
	}

	events := e.buffer.Snapshot()

	if minSeverity != "" && minSeverity != "low" {
		minRank := model.SeverityRank(minSeverity)
		filtered := events[:0]
		for _, ev := range events {
			if ev.Severity.Rank() >= minRank {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	if len(platforms) > 0 {
		allowed := make(map[string]bool, len(platforms))
		for _, p := range platforms {
			allowed[p] = true
		}
		filtered := events[:0]
		for _, ev := range events {
			if allowed[string(ev.SourcePlatform)] {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	return Correlate(events, windowSeconds)
}

// AnalyzeRootCause correlates the buffer and matches each group against
// the template catalog. Matches are recorded as incidents. A non-empty
// correlationPrefix restricts the analysis to groups whose ID starts
// with it.
func (e *Engine) AnalyzeRootCause(correlationPrefix string, windowSeconds int) []GroupAnalysis {
	if windowSeconds <= 0 {
		windowSeconds = e.window
	}

	groups := Correlate(e.buffer.Snapshot(), windowSeconds)

	var out []GroupAnalysis
	for _, g := range groups {
		if correlationPrefix != "" && !strings.HasPrefix(g.CorrelationID, correlationPrefix) {
			continue
		}
		rca := MatchRootCause(g, e.catalog)
		if rca != nil {
			e.recordIncident(g, rca)
		}
		out = append(out, GroupAnalysis{Group: g, RCA: rca})
	}
	return out
}

func (e *Engine) recordIncident(g Group, rca *RCAResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, Incident{
		Timestamp:     time.Now().UTC(),
		CorrelationID: g.CorrelationID,
		RCA:           *rca,
		Platforms:     g.Platforms,
		Severity:      g.Severity,
	})
	if len(e.history) > maxIncidentHistory {
		trimmed := make([]Incident, maxIncidentHistory)
		copy(trimmed, e.history[len(e.history)-maxIncidentHistory:])
		e.history = trimmed
	}
}

// DetectAnomalies runs frequency-spike detection over the lookback
// window and logs anomalies at or above minConfidence.
func (e *Engine) DetectAnomalies(lookbackMinutes int, minConfidence float64) []Anomaly {
	if lookbackMinutes <= 0 {
		lookbackMinutes = 60
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackMinutes) * time.Minute)
	var events []model.Event
	for _, ev := range e.buffer.Snapshot() {
		if !ev.Timestamp.Before(cutoff) {
			events = append(events, ev)
		}
	}

	anomalies := DetectAnomalies(events, e.sensitivity)

	var confident []Anomaly
	for _, a := range anomalies {
		if a.Confidence >= minConfidence {
			confident = append(confident, a)
		}
	}

	if len(confident) > 0 {
		e.mu.Lock()
		e.anomalyLog = append(e.anomalyLog, confident...)
		if len(e.anomalyLog) > maxAnomalyLog {
			trimmed := make([]Anomaly, maxAnomalyLog)
			copy(trimmed, e.anomalyLog[len(e.anomalyLog)-maxAnomalyLog:])
			e.anomalyLog = trimmed
		}
		e.mu.Unlock()
	}

	return confident
}

// PredictFailures applies the escalation heuristics to the lookback
// window.
func (e *Engine) PredictFailures(lookbackMinutes int, includeHistory bool) []Prediction {
	if lookbackMinutes <= 0 {
		lookbackMinutes = 30
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackMinutes) * time.Minute)
	var events []model.Event
	for _, ev := range e.buffer.Snapshot() {
		if !ev.Timestamp.Before(cutoff) {
			events = append(events, ev)
		}
	}

	var history []Incident
	if includeHistory {
		history = e.Incidents()
	}

	return PredictFailures(events, history)
}

// Timeline returns recorded incidents within the window at or above
// minSeverity, newest first.
func (e *Engine) Timeline(hours int, minSeverity string) []Incident {
	if hours <= 0 {
		hours = 24
	}
	if minSeverity == "" {
		minSeverity = "info"
	}

	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	minRank := model.SeverityRank(minSeverity)

	e.mu.Lock()
	var recent []Incident
	for _, inc := range e.history {
		if !inc.Timestamp.Before(cutoff) && inc.Severity.Rank() >= minRank {
			recent = append(recent, inc)
		}
	}
	e.mu.Unlock()

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	return recent
}

// RiskScore composes the network risk score from the last hour of
// events plus the anomaly log and fresh predictions.
func (e *Engine) RiskScore(includeAnomalies, includePredictions bool) RiskBreakdown {
	now := time.Now().UTC()
	snapshot := e.buffer.Snapshot()

	var recent []model.Event
	platforms := make(map[string]bool)
	for _, ev := range snapshot {
		if now.Sub(ev.Timestamp) < time.Hour {
			recent = append(recent, ev)
			platforms[string(ev.SourcePlatform)] = true
		}
	}

	eventScore := eventRiskScore(recent)

	anomalyScore := 0.0
	if includeAnomalies {
		e.mu.Lock()
		logged := make([]Anomaly, len(e.anomalyLog))
		copy(logged, e.anomalyLog)
		e.mu.Unlock()
		anomalyScore = anomalyRiskScore(logged)
	}

	predictionScore := 0.0
	if includePredictions {
		predictions := PredictFailures(recent, e.Incidents())
		predictionScore = predictionRiskScore(predictions)
	}

	total := eventScore + anomalyScore + predictionScore
	if total > 100 {
		total = 100
	}

	breakdown := RiskBreakdown{
		Total:           total,
		Tier:            RiskTier(total),
		EventScore:      eventScore,
		AnomalyScore:    anomalyScore,
		PredictionScore: predictionScore,
		EventCount:      len(recent),
		ActivePlatforms: len(platforms),
		BufferSize:      len(snapshot),
		IncidentCount:   e.IncidentCount(),
	}

	if e.metrics != nil {
		e.metrics.RecordRiskScore(total)
	}
	return breakdown
}

// Incidents returns a copy of the recorded incident history
func (e *Engine) Incidents() []Incident {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Incident, len(e.history))
	copy(out, e.history)
	return out
}

// IncidentCount returns the number of recorded incidents
func (e *Engine) IncidentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// BufferLen returns the current ingest buffer size
func (e *Engine) BufferLen() int {
	return e.buffer.Len()
}

// Catalog returns a copy of the active RCA template catalog
func (e *Engine) Catalog() []Template {
	out := make([]Template, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// DefaultWindowSeconds returns the configured correlation window
func (e *Engine) DefaultWindowSeconds() int {
	return e.window
}
