// Package audit provides audit logging for tracking tool executions and
// forwarded operations. This helps with debugging, compliance, and
// understanding usage patterns.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gwerrors "github.com/netopscore/netops-gateway/internal/errors"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Actions recorded in audit entries
const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionDelete  = "delete"
	ActionExecute = "execute"
)

// Entry represents a single audit log entry
type Entry struct {
	AuditID       string                 `json:"audit_id"`
	Timestamp     time.Time              `json:"timestamp"`
	TraceID       string                 `json:"trace_id"`
	SpanID        string                 `json:"span_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Caller        string                 `json:"caller"`
	Tool          string                 `json:"tool"`
	Platform      string                 `json:"platform,omitempty"`
	Action        string                 `json:"action"` // read, write, delete, execute
	ParamsHash    string                 `json:"params_hash,omitempty"`
	Approver      string                 `json:"approver,omitempty"`
	Success       bool                   `json:"success"`
	Duration      time.Duration          `json:"duration_ms"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	ErrorMsg      string                 `json:"error_message,omitempty"`
	ResultCount   int                    `json:"result_count,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// HashParams returns the SHA-256 hex digest of the canonical JSON encoding
// of the tool parameters. Raw parameter values never enter the audit log.
func HashParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Logger handles audit logging
type Logger struct {
	enabled bool
	logger  *zap.Logger

	// In-memory buffer for recent entries (for the audit surface)
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
}

// NewLogger creates a new audit logger
func NewLogger(logger *zap.Logger, enabled bool) *Logger {
	return &Logger{
		enabled:    enabled,
		logger:     logger.Named("audit"),
		entries:    make([]Entry, 0, 1000),
		maxEntries: 1000, // Keep last 1000 entries in memory
	}
}

// Log records an audit entry
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if !l.enabled {
		return
	}

	// Enrich with trace information
	traceInfo := tracing.FromContext(ctx)
	if traceInfo.TraceID != "" {
		entry.TraceID = traceInfo.TraceID
	}
	if traceInfo.SpanID != "" {
		entry.SpanID = traceInfo.SpanID
	}

	// Ensure identity and timestamp are set
	if entry.AuditID == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	// Log to structured logger
	fields := []zap.Field{
		zap.String("audit_id", entry.AuditID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("trace_id", entry.TraceID),
		zap.String("caller", entry.Caller),
		zap.String("tool", entry.Tool),
		zap.String("action", entry.Action),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}

	if entry.SpanID != "" {
		fields = append(fields, zap.String("span_id", entry.SpanID))
	}
	if entry.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", entry.CorrelationID))
	}
	if entry.Platform != "" {
		fields = append(fields, zap.String("platform", entry.Platform))
	}
	if entry.ParamsHash != "" {
		fields = append(fields, zap.String("params_hash", entry.ParamsHash))
	}
	if entry.Approver != "" {
		fields = append(fields, zap.String("approver", entry.Approver))
	}
	if entry.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", entry.ErrorCode))
	}
	if entry.ErrorMsg != "" {
		fields = append(fields, zap.String("error_message", entry.ErrorMsg))
	}
	if entry.ResultCount > 0 {
		fields = append(fields, zap.Int("result_count", entry.ResultCount))
	}

	l.logger.Info("audit", fields...)

	// Store in memory buffer
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.maxEntries {
		// Remove oldest entry
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, entry)
}

// LogToolExecution is a convenience method for logging tool executions
func (l *Logger) LogToolExecution(ctx context.Context, caller, toolName, platform, action string, params map[string]interface{}, success bool, duration time.Duration, err error) {
	entry := Entry{
		Caller:     caller,
		Tool:       toolName,
		Platform:   platform,
		Action:     action,
		ParamsHash: HashParams(params),
		Success:    success,
		Duration:   duration,
	}

	if err != nil {
		entry.ErrorMsg = err.Error()
		var structured *gwerrors.StructuredError
		if errors.As(err, &structured) {
			entry.ErrorCode = string(structured.Code)
		}
	}

	l.Log(ctx, entry)
}

// GetRecentEntries returns the most recent audit entries
func (l *Logger) GetRecentEntries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}

	// Return most recent entries (from the end)
	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}

	result := make([]Entry, limit)
	copy(result, l.entries[start:])

	// Reverse to get newest first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return result
}

// GetEntriesByTool returns audit entries for a specific tool
func (l *Logger) GetEntriesByTool(toolName string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	// Iterate from newest to oldest
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if l.entries[i].Tool == toolName {
			result = append(result, l.entries[i])
		}
	}

	return result
}

// GetEntriesByCaller returns audit entries for a specific caller identity
func (l *Logger) GetEntriesByCaller(caller string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if l.entries[i].Caller == caller {
			result = append(result, l.entries[i])
		}
	}

	return result
}

// GetEntriesByTraceID returns all entries for a specific trace
func (l *Logger) GetEntriesByTraceID(traceID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for _, entry := range l.entries {
		if entry.TraceID == traceID {
			result = append(result, entry)
		}
	}

	return result
}

// GetStats returns statistics about audit entries
func (l *Logger) GetStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		TotalEntries: len(l.entries),
		ToolUsage:    make(map[string]int),
		ActionCounts: make(map[string]int),
		ErrorCounts:  make(map[string]int),
	}

	var successCount int
	var totalDuration time.Duration

	for _, entry := range l.entries {
		stats.ToolUsage[entry.Tool]++
		stats.ActionCounts[entry.Action]++

		if entry.Success {
			successCount++
		} else if entry.ErrorCode != "" {
			stats.ErrorCounts[entry.ErrorCode]++
		}

		totalDuration += entry.Duration
	}

	if len(l.entries) > 0 {
		stats.SuccessRate = float64(successCount) / float64(len(l.entries)) * 100
		stats.AverageDuration = totalDuration / time.Duration(len(l.entries))
	}

	return stats
}

// Stats contains aggregated audit statistics
type Stats struct {
	TotalEntries    int            `json:"total_entries"`
	SuccessRate     float64        `json:"success_rate_pct"`
	AverageDuration time.Duration  `json:"average_duration"`
	ToolUsage       map[string]int `json:"tool_usage"`
	ActionCounts    map[string]int `json:"action_counts"`
	ErrorCounts     map[string]int `json:"error_counts"`
}

// ToJSON returns the stats as JSON
func (s Stats) ToJSON() string {
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

// Clear clears all audit entries (useful for testing)
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// IsEnabled returns whether audit logging is enabled
func (l *Logger) IsEnabled() bool {
	return l.enabled
}
