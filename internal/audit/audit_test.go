package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	gwerrors "github.com/netopscore/netops-gateway/internal/errors"
)

func TestHashParams(t *testing.T) {
	h1 := HashParams(map[string]interface{}{"tool_name": "meraki_health", "org_id": "123"})
	h2 := HashParams(map[string]interface{}{"org_id": "123", "tool_name": "meraki_health"})

	if h1 == "" {
		t.Fatal("Expected non-empty hash")
	}
	if h1 != h2 {
		t.Error("Hash should be independent of key insertion order")
	}
	if len(h1) != 64 {
		t.Errorf("Expected 64-char hex digest, got %d chars", len(h1))
	}

	if HashParams(nil) != "" {
		t.Error("Nil params should hash to empty string")
	}

	h3 := HashParams(map[string]interface{}{"tool_name": "meraki_health", "org_id": "456"})
	if h1 == h3 {
		t.Error("Different params should produce different hashes")
	}
}

func TestLoggerRingBuffer(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)
	l.maxEntries = 5

	for i := 0; i < 10; i++ {
		l.Log(context.Background(), Entry{
			Caller: "operator-1",
			Tool:   "get_network_status",
			Action: ActionRead,
		})
	}

	entries := l.GetRecentEntries(0)
	if len(entries) != 5 {
		t.Errorf("Expected 5 retained entries, got %d", len(entries))
	}
}

func TestLoggerEntryEnrichment(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)

	l.Log(context.Background(), Entry{
		Caller: "operator-1",
		Tool:   "call_platform_tool",
		Action: ActionExecute,
	})

	entries := l.GetRecentEntries(1)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.AuditID == "" {
		t.Error("Expected audit_id to be assigned")
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected timestamp to be assigned")
	}
}

func TestLoggerDisabled(t *testing.T) {
	l := NewLogger(zap.NewNop(), false)

	l.Log(context.Background(), Entry{Tool: "get_network_status", Action: ActionRead})

	if len(l.GetRecentEntries(0)) != 0 {
		t.Error("Disabled logger should not retain entries")
	}
}

func TestLogToolExecution(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)

	params := map[string]interface{}{"tool_name": "ise_quarantine_endpoint"}
	l.LogToolExecution(context.Background(), "operator-1", "call_platform_tool", "ise", ActionExecute, params, true, 42*time.Millisecond, nil)

	entries := l.GetRecentEntries(1)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Caller != "operator-1" {
		t.Errorf("Caller = %q, want operator-1", e.Caller)
	}
	if e.Platform != "ise" {
		t.Errorf("Platform = %q, want ise", e.Platform)
	}
	if e.ParamsHash == "" {
		t.Error("Expected params hash to be recorded")
	}
	if strings.Contains(e.ParamsHash, "quarantine") {
		t.Error("Raw parameter values must not appear in the audit entry")
	}
}

func TestLogToolExecutionErrorCode(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)

	structured := gwerrors.NewApprovalRequired("ise_quarantine_endpoint")
	l.LogToolExecution(context.Background(), "operator-1", "ise_quarantine_endpoint", "ise", ActionDelete, nil, false, time.Millisecond, structured)
	l.LogToolExecution(context.Background(), "operator-1", "meraki_health", "meraki", ActionRead, nil, false, time.Millisecond, errors.New("plain failure"))

	entries := l.GetRecentEntries(2)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Newest first: the plain error has no code, the structured one does
	if entries[0].ErrorCode != "" {
		t.Errorf("Plain error should have no code, got %q", entries[0].ErrorCode)
	}
	if entries[1].ErrorCode != string(gwerrors.CodeApprovalRequired) {
		t.Errorf("ErrorCode = %q, want %s", entries[1].ErrorCode, gwerrors.CodeApprovalRequired)
	}
	if entries[1].ErrorMsg == "" {
		t.Error("Expected error message to be recorded")
	}
}

func TestGetEntriesByTool(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)

	l.Log(context.Background(), Entry{Tool: "get_network_status", Action: ActionRead})
	l.Log(context.Background(), Entry{Tool: "correlate_events", Action: ActionRead})
	l.Log(context.Background(), Entry{Tool: "get_network_status", Action: ActionRead})

	entries := l.GetEntriesByTool("get_network_status", 10)
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(entries))
	}
}

func TestGetStats(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)

	l.Log(context.Background(), Entry{Tool: "correlate_events", Action: ActionRead, Success: true, Duration: 10 * time.Millisecond})
	l.Log(context.Background(), Entry{Tool: "correlate_events", Action: ActionRead, Success: false, ErrorCode: "TRANSPORT_UNAVAILABLE", Duration: 20 * time.Millisecond})

	stats := l.GetStats()
	if stats.TotalEntries != 2 {
		t.Errorf("TotalEntries = %d, want 2", stats.TotalEntries)
	}
	if stats.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", stats.SuccessRate)
	}
	if stats.ToolUsage["correlate_events"] != 2 {
		t.Errorf("ToolUsage = %v", stats.ToolUsage)
	}
	if stats.ErrorCounts["TRANSPORT_UNAVAILABLE"] != 1 {
		t.Errorf("ErrorCounts = %v", stats.ErrorCounts)
	}
}
