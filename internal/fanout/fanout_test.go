package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/audit"
	"github.com/netopscore/netops-gateway/internal/forward"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/routing"
)

type approvalRecorder struct {
	mu       sync.Mutex
	requests []ApprovalRequest
}

func (a *approvalRecorder) RequestApproval(_ context.Context, data interface{}) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if req, ok := data.(ApprovalRequest); ok {
		a.requests = append(a.requests, req)
	}
	return 1
}

func (a *approvalRecorder) recorded() []ApprovalRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ApprovalRequest, len(a.requests))
	copy(out, a.requests)
	return out
}

// rpcBackend answers every tools/call with the given result
func rpcBackend(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func capability(tool string, platform model.Platform, roles ...model.Role) model.Capability {
	return model.Capability{
		ToolName: tool,
		Platform: platform,
		Roles:    roles,
		ReadOnly: true,
	}
}

func record(name string, platform model.Platform, endpoint string, caps ...model.Capability) model.BackendRecord {
	return model.BackendRecord{
		Name:         name,
		Platform:     platform,
		Endpoint:     endpoint,
		Transport:    "streamable_http",
		Capabilities: caps,
	}
}

func newTestEngine(t *testing.T, records ...model.BackendRecord) (*Engine, *approvalRecorder, *audit.Logger) {
	t.Helper()
	router := routing.NewRouter(zap.NewNop())
	router.Swap(routing.Build(records))

	approvals := &approvalRecorder{}
	auditLog := audit.NewLogger(zap.NewNop(), true)
	fwd := forward.New(5*time.Second, zap.NewNop(), nil)

	return New(router, fwd, approvals, auditLog, "1.0.0-test", zap.NewNop(), nil), approvals, auditLog
}

func TestFanOutBroadcast(t *testing.T) {
	meraki := rpcBackend(t, map[string]interface{}{"summary": "all APs up"})
	ise := rpcBackend(t, map[string]interface{}{"summary": "auth healthy"})

	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, meraki.URL,
			capability("get_meraki_health", model.PlatformMeraki, model.RoleObservability)),
		record("ise_mcp", model.PlatformISE, ise.URL,
			capability("ise_status", model.PlatformISE, model.RoleObservability)),
	)

	out := engine.FanOut(context.Background(), model.RoleObservability, Query{}, "tester")

	assert.Contains(t, out, "## Observability — Cross-Platform Summary")
	assert.Contains(t, out, "### meraki")
	assert.Contains(t, out, "all APs up")
	assert.Contains(t, out, "### ise")
	assert.Contains(t, out, "auth healthy")
}

func TestFanOutPlatformFilter(t *testing.T) {
	meraki := rpcBackend(t, map[string]interface{}{"summary": "ok"})
	ise := rpcBackend(t, map[string]interface{}{"summary": "ok"})

	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, meraki.URL,
			capability("get_meraki_health", model.PlatformMeraki, model.RoleObservability)),
		record("ise_mcp", model.PlatformISE, ise.URL,
			capability("ise_status", model.PlatformISE, model.RoleObservability)),
	)

	out := engine.FanOut(context.Background(), model.RoleObservability,
		Query{Platforms: []string{"meraki"}}, "tester")

	assert.Contains(t, out, "### meraki")
	assert.NotContains(t, out, "### ise")
}

func TestFanOutRendersBackendErrors(t *testing.T) {
	meraki := rpcBackend(t, map[string]interface{}{"summary": "ok"})
	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	down.Close()

	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, meraki.URL,
			capability("get_meraki_health", model.PlatformMeraki, model.RoleObservability)),
		record("ise_mcp", model.PlatformISE, down.URL,
			capability("ise_status", model.PlatformISE, model.RoleObservability)),
	)

	out := engine.FanOut(context.Background(), model.RoleObservability, Query{}, "tester")

	assert.Contains(t, out, "### meraki")
	assert.Contains(t, out, "### ❌ ise")
	assert.Contains(t, out, "unreachable")
}

func TestFanOutNoEntries(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	out := engine.FanOut(context.Background(), model.RoleIdentity, Query{}, "tester")

	assert.Equal(t, "No tools available for role **identity**.", out)
}

func TestFanOutListingWhenNoSummaryTools(t *testing.T) {
	srv := rpcBackend(t, map[string]interface{}{})
	gated := capability("quarantine_endpoint", model.PlatformISE, model.RoleAutomation)
	gated.ReadOnly = false
	gated.RequiresApproval = true

	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, srv.URL,
			capability("list_clients", model.PlatformMeraki, model.RoleAutomation)),
		record("ise_mcp", model.PlatformISE, srv.URL, gated),
	)

	out := engine.FanOut(context.Background(), model.RoleAutomation, Query{}, "tester")

	assert.Contains(t, out, "## Automation — Available Tools")
	assert.Contains(t, out, "- `list_clients` (meraki)")
	assert.Contains(t, out, "- `quarantine_endpoint` (ise) 🔒")
}

func TestFanOutDirectCall(t *testing.T) {
	var gotArgs map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		params := req["params"].(map[string]interface{})
		gotArgs = params["arguments"].(map[string]interface{})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req["id"],
			"result": map[string]interface{}{"clients": 42},
		})
	}))
	t.Cleanup(srv.Close)

	engine, approvals, auditLog := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, srv.URL,
			capability("get_clients", model.PlatformMeraki, model.RoleObservability)),
	)

	out := engine.FanOut(context.Background(), model.RoleObservability,
		Query{ToolName: "get_clients", Arguments: map[string]interface{}{"network_id": "L_123"}}, "alice")

	assert.Contains(t, out, `"clients": 42`)
	assert.Equal(t, "L_123", gotArgs["network_id"])
	assert.Empty(t, approvals.recorded())

	entries := auditLog.GetRecentEntries(5)
	require.Len(t, entries, 1)
	assert.Equal(t, "get_clients", entries[0].Tool)
	assert.Equal(t, audit.ActionRead, entries[0].Action)
	assert.Equal(t, "alice", entries[0].Caller)
	assert.True(t, entries[0].Success)
}

func TestFanOutDirectCallNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	out := engine.FanOut(context.Background(), model.RoleObservability,
		Query{ToolName: "nope"}, "tester")

	assert.Equal(t, "❌ Tool `nope` not found in routing table.", out)
}

func TestFanOutDirectCallPublishesApproval(t *testing.T) {
	srv := rpcBackend(t, map[string]interface{}{"quarantined": true})
	gated := model.Capability{
		ToolName:         "quarantine_endpoint",
		Platform:         model.PlatformISE,
		Roles:            []model.Role{model.RoleAutomation},
		Destructive:      true,
		RequiresApproval: true,
	}

	engine, approvals, auditLog := newTestEngine(t,
		record("ise_mcp", model.PlatformISE, srv.URL, gated),
	)

	out := engine.FanOut(context.Background(), model.RoleAutomation,
		Query{ToolName: "quarantine_endpoint", Arguments: map[string]interface{}{"mac": "AA:BB:CC:DD:EE:01"}}, "alice")

	assert.Contains(t, out, `"quarantined": true`)

	requests := approvals.recorded()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.NotEmpty(t, req.ApprovalID)
	assert.Equal(t, "quarantine_endpoint", req.ToolName)
	assert.Equal(t, "ise", req.Platform)
	assert.Equal(t, "alice", req.Caller)
	assert.NotEmpty(t, req.ParamsHash)
	assert.WithinDuration(t, time.Now().UTC(), req.RequestedAt, 5*time.Second)

	entries := auditLog.GetRecentEntries(5)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDelete, entries[0].Action)
	assert.Equal(t, req.ParamsHash, entries[0].ParamsHash)
	assert.True(t, entries[0].Success)
}

func TestFanOutGateDenialBlocksDispatch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": map[string]interface{}{}})
	}))
	t.Cleanup(srv.Close)

	gated := model.Capability{
		ToolName:         "reboot_device",
		Platform:         model.PlatformCatalystCenter,
		Roles:            []model.Role{model.RoleAutomation},
		Destructive:      true,
		RequiresApproval: true,
	}

	engine, approvals, auditLog := newTestEngine(t,
		record("catalyst_center_mcp", model.PlatformCatalystCenter, srv.URL, gated),
	)
	engine.SetApprovalGate(func(context.Context, ApprovalRequest) bool { return false })

	out := engine.FanOut(context.Background(), model.RoleAutomation,
		Query{ToolName: "reboot_device"}, "alice")

	assert.Contains(t, out, "requires approval")
	assert.Equal(t, int64(0), calls.Load())
	require.Len(t, approvals.recorded(), 1)

	entries := auditLog.GetRecentEntries(5)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestFanOutTruncatesLongSections(t *testing.T) {
	long := strings.Repeat("x", 2000)
	srv := rpcBackend(t, map[string]interface{}{"data": long})

	engine, _, _ := newTestEngine(t,
		record("splunk_mcp", model.PlatformSplunk, srv.URL,
			capability("splunk_status", model.PlatformSplunk, model.RoleObservability)),
	)

	out := engine.FanOut(context.Background(), model.RoleObservability, Query{}, "tester")

	assert.Contains(t, out, strings.Repeat("x", 100))
	assert.NotContains(t, out, strings.Repeat("x", 600))
}

func TestNetworkStatus(t *testing.T) {
	var probed sync.Map
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		params := req["params"].(map[string]interface{})
		probed.Store(params["name"].(string), true)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req["id"],
			"result": map[string]interface{}{"status": "healthy"},
		})
	}))
	t.Cleanup(healthy.Close)

	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	down.Close()

	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, healthy.URL,
			capability("get_meraki_health", model.PlatformMeraki, model.RoleObservability)),
		record("ise_mcp", model.PlatformISE, down.URL,
			capability("ise_status", model.PlatformISE, model.RoleIdentity)),
	)

	out := engine.NetworkStatus(context.Background())

	assert.Contains(t, out, "## NetOps Gateway — Network Status Overview")
	assert.Contains(t, out, "**Connected Servers:** 2")
	assert.Contains(t, out, "- 🟢 **meraki_mcp** — healthy")
	assert.Contains(t, out, "- 🔴 **ise_mcp** — unreachable")

	_, ok := probed.Load("meraki_health")
	assert.True(t, ok, "health probe should call the backend's derived health tool")
}

func TestGatewayHealth(t *testing.T) {
	engine, _, _ := newTestEngine(t,
		record("meraki_mcp", model.PlatformMeraki, "http://meraki-mcp:8002",
			capability("get_meraki_health", model.PlatformMeraki, model.RoleObservability)),
	)

	out := engine.GatewayHealth()

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "netops_gateway", doc["service"])
	assert.Equal(t, "healthy", doc["status"])
	assert.Equal(t, "1.0.0-test", doc["version"])

	table := doc["routing_table"].(map[string]interface{})
	assert.Equal(t, float64(1), table["servers"])
	assert.Equal(t, float64(1), table["tools"])

	endpoints := doc["endpoints"].(map[string]interface{})
	assert.Equal(t, "http://meraki-mcp:8002", endpoints["meraki_mcp"])
}
