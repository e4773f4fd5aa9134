// Package session provides session context management for the gateway.
// It maintains state across tool calls within a conversation to enable
// intelligent tool chaining and contextual suggestions.
package session

import (
	"sync"
	"time"
)

// Context holds session state that persists across tool calls
type Context struct {
	mu sync.RWMutex

	// Caller identity attached to this session
	Caller string

	// Call context
	LastCall       *CallInfo
	RecentCalls    []CallInfo
	maxRecentCalls int

	// Platforms touched by forwarded calls, by platform name
	LastPlatforms map[string]*PlatformInfo

	// Error context
	RecentErrors    []ErrorInfo
	maxRecentErrors int

	// Session metadata
	CreatedAt time.Time
	UpdatedAt time.Time
	ToolCalls int
}

// CallInfo stores information about a tool call execution
type CallInfo struct {
	Tool        string                 `json:"tool"`
	Platform    string                 `json:"platform,omitempty"`
	ResultCount int                    `json:"result_count"`
	HasFindings bool                   `json:"has_findings"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PlatformInfo stores information about a platform touched by a forwarded call
type PlatformInfo struct {
	Platform  string    `json:"platform"`
	Tool      string    `json:"tool,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorInfo stores information about errors encountered
type ErrorInfo struct {
	Tool      string    `json:"tool"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new session context
func New() *Context {
	return &Context{
		LastPlatforms:   make(map[string]*PlatformInfo),
		RecentCalls:     make([]CallInfo, 0, 10),
		RecentErrors:    make([]ErrorInfo, 0, 10),
		maxRecentCalls:  10,
		maxRecentErrors: 10,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// SetCaller attaches a caller identity to the session
func (c *Context) SetCaller(caller string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Caller = caller
	c.UpdatedAt = time.Now()
}

// GetCaller returns the caller identity attached to the session
func (c *Context) GetCaller() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Caller
}

// RecordCall records a tool call execution
func (c *Context) RecordCall(info CallInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info.Timestamp = time.Now()
	c.LastCall = &info
	c.UpdatedAt = time.Now()
	c.ToolCalls++

	// Add to recent calls, maintaining max size
	c.RecentCalls = append(c.RecentCalls, info)
	if len(c.RecentCalls) > c.maxRecentCalls {
		c.RecentCalls = c.RecentCalls[1:]
	}
}

// RecordPlatform records a forwarded call touching a platform
func (c *Context) RecordPlatform(platform, tool string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastPlatforms[platform] = &PlatformInfo{
		Platform:  platform,
		Tool:      tool,
		Timestamp: time.Now(),
	}
	c.UpdatedAt = time.Now()
}

// RecordError records an error encountered during tool execution
func (c *Context) RecordError(tool, message, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.RecentErrors = append(c.RecentErrors, ErrorInfo{
		Tool:      tool,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	})
	if len(c.RecentErrors) > c.maxRecentErrors {
		c.RecentErrors = c.RecentErrors[1:]
	}
	c.UpdatedAt = time.Now()
}

// GetLastCall returns the last call info (thread-safe copy)
func (c *Context) GetLastCall() *CallInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.LastCall == nil {
		return nil
	}
	// Return a copy to avoid race conditions
	copy := *c.LastCall
	return &copy
}

// GetLastPlatform returns the most recent touch of a given platform
func (c *Context) GetLastPlatform(platform string) *PlatformInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if info, ok := c.LastPlatforms[platform]; ok {
		// Return a copy
		copy := *info
		return &copy
	}
	return nil
}

// GetRecentCalls returns recent calls (thread-safe copy)
func (c *Context) GetRecentCalls() []CallInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]CallInfo, len(c.RecentCalls))
	copy(result, c.RecentCalls)
	return result
}

// GetRecentErrors returns recent errors (thread-safe copy)
func (c *Context) GetRecentErrors() []ErrorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ErrorInfo, len(c.RecentErrors))
	copy(result, c.RecentErrors)
	return result
}

// HasRecentErrors returns true if there were recent errors
func (c *Context) HasRecentErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.RecentErrors) > 0
}

// GetStats returns session statistics
func (c *Context) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"caller":          c.Caller,
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
		"tool_calls":      c.ToolCalls,
		"calls_count":     len(c.RecentCalls),
		"platforms_count": len(c.LastPlatforms),
		"errors_count":    len(c.RecentErrors),
		"age_seconds":     time.Since(c.CreatedAt).Seconds(),
	}
}

// Clear resets the session context
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastCall = nil
	c.RecentCalls = make([]CallInfo, 0, 10)
	c.LastPlatforms = make(map[string]*PlatformInfo)
	c.RecentErrors = make([]ErrorInfo, 0, 10)
	c.UpdatedAt = time.Now()
	c.ToolCalls = 0
}

// SuggestNextTools suggests tools based on session context
func (c *Context) SuggestNextTools() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var suggestions []string

	// Follow the investigation flow: status, correlation, root cause, risk
	if c.LastCall != nil {
		switch c.LastCall.Tool {
		case "network_status":
			if c.LastCall.HasFindings {
				suggestions = append(suggestions, "infer_correlate_events")
				suggestions = append(suggestions, "infer_network_risk_score")
			}
		case "infer_correlate_events":
			if c.LastCall.HasFindings {
				suggestions = append(suggestions, "infer_root_cause_analysis")
				suggestions = append(suggestions, "infer_get_incident_timeline")
			}
		case "infer_root_cause_analysis":
			suggestions = append(suggestions, "infer_predict_failures")
		case "infer_detect_anomalies":
			if c.LastCall.HasFindings {
				suggestions = append(suggestions, "infer_network_risk_score")
			}
		}
	}

	// If there were recent errors, suggest checking the gateway itself
	if len(c.RecentErrors) > 0 {
		suggestions = append(suggestions, "gateway_health")
	}

	return suggestions
}
