package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 5, SeverityCritical.Rank())
	assert.Equal(t, 4, SeverityHigh.Rank())
	assert.Equal(t, 3, SeverityMedium.Rank())
	assert.Equal(t, 2, SeverityLow.Rank())
	assert.Equal(t, 1, SeverityInfo.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
	assert.Equal(t, 0, Severity("").Rank())
}

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles() {
		parsed, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("janitor")
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	parsed, err := ParsePlatform("catalyst_center")
	require.NoError(t, err)
	assert.Equal(t, PlatformCatalystCenter, parsed)

	_, err = ParsePlatform("minitel")
	assert.Error(t, err)
}

func TestEventOverlapsWith(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := Event{Timestamp: base, AffectedEntities: []string{"site-a", "sw-1"}}
	b := Event{Timestamp: base.Add(60 * time.Second), AffectedEntities: []string{"site-a"}}
	c := Event{Timestamp: base.Add(30 * time.Second), AffectedEntities: []string{"host-b"}}
	d := Event{Timestamp: base.Add(10 * time.Minute), AffectedEntities: []string{"site-a"}}

	t.Run("shared entity within window", func(t *testing.T) {
		assert.True(t, a.OverlapsWith(b, 300))
		assert.True(t, b.OverlapsWith(a, 300), "overlap is symmetric")
	})

	t.Run("disjoint entities", func(t *testing.T) {
		assert.False(t, a.OverlapsWith(c, 300))
	})

	t.Run("outside window", func(t *testing.T) {
		assert.False(t, a.OverlapsWith(d, 300))
	})
}

func TestEventFromPayload(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		ev, err := EventFromPayload(map[string]interface{}{
			"event_id":          "ev-1",
			"source_platform":   "meraki",
			"event_type":        "ap_offline",
			"severity":          "high",
			"timestamp":         "2025-06-01T12:00:00Z",
			"affected_entities": []interface{}{"ap-17", "net-1"},
			"raw_data":          map[string]interface{}{"serial": "Q2XX"},
			"tags":              []interface{}{"wireless"},
		})
		require.NoError(t, err)
		assert.Equal(t, "ev-1", ev.EventID)
		assert.Equal(t, PlatformMeraki, ev.SourcePlatform)
		assert.Equal(t, SeverityHigh, ev.Severity)
		assert.Equal(t, []string{"ap-17", "net-1"}, ev.AffectedEntities)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ev.Timestamp)
	})

	t.Run("defaults applied", func(t *testing.T) {
		ev, err := EventFromPayload(map[string]interface{}{
			"source_platform": "xdr",
			"event_type":      "suspicious_traffic",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ev.EventID)
		assert.Equal(t, SeverityInfo, ev.Severity)
		assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, 5*time.Second)
	})

	t.Run("unknown platform rejected", func(t *testing.T) {
		_, err := EventFromPayload(map[string]interface{}{
			"source_platform": "commodore64",
			"event_type":      "boot",
		})
		assert.Error(t, err)
	})

	t.Run("missing event_type rejected", func(t *testing.T) {
		_, err := EventFromPayload(map[string]interface{}{
			"source_platform": "meraki",
		})
		assert.Error(t, err)
	})
}

func TestEventFromSecurityAlert(t *testing.T) {
	t.Run("defaults for partial alert", func(t *testing.T) {
		ev := EventFromSecurityAlert(map[string]interface{}{})
		assert.Equal(t, PlatformXDR, ev.SourcePlatform)
		assert.Equal(t, "security_alert", ev.EventType)
		assert.Equal(t, SeverityMedium, ev.Severity)
		assert.NotEmpty(t, ev.EventID)
	})

	t.Run("explicit fields honored", func(t *testing.T) {
		ev := EventFromSecurityAlert(map[string]interface{}{
			"source":     "hypershield",
			"event_type": "enforcement_block",
			"severity":   "critical",
			"data":       map[string]interface{}{"flow": "10.0.0.1->10.0.0.9"},
		})
		assert.Equal(t, PlatformHypershield, ev.SourcePlatform)
		assert.Equal(t, "enforcement_block", ev.EventType)
		assert.Equal(t, SeverityCritical, ev.Severity)
		assert.Equal(t, "10.0.0.1->10.0.0.9", ev.RawData["flow"])
	})
}

func TestBackendRecordWireRoundTrip(t *testing.T) {
	rec := BackendRecord{
		Name:        "meraki_mcp",
		Description: "Meraki cloud dashboard server",
		Platform:    PlatformMeraki,
		Skills:      []string{"wireless_health"},
		Domains:     []string{"campus"},
		Roles:       []Role{RoleObservability},
		Endpoint:    "http://meraki-mcp:8002",
		Capabilities: []Capability{
			{
				ToolName:    "meraki_health",
				Description: "Org-wide health summary",
				Roles:       []Role{RoleObservability},
				ReadOnly:    true,
				Platform:    PlatformMeraki,
			},
			{
				ToolName:         "meraki_reboot_device",
				Description:      "Reboot a device by serial",
				Roles:            []Role{RoleAutomation},
				ReadOnly:         false,
				Destructive:      true,
				RequiresApproval: true,
				Platform:         PlatformMeraki,
			},
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	// Wire shape keeps platform/endpoint under attributes and tools under
	// modules.mcp_server.
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))
	attrs := wire["attributes"].(map[string]interface{})
	assert.Equal(t, "meraki", attrs["platform"])
	assert.Equal(t, "http://meraki-mcp:8002", attrs["endpoint"])
	assert.Equal(t, "streamable_http", attrs["transport"])
	modules := wire["modules"].(map[string]interface{})
	tools := modules["mcp_server"].(map[string]interface{})["tools"].([]interface{})
	require.Len(t, tools, 2)

	var back BackendRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Name, back.Name)
	assert.Equal(t, rec.Platform, back.Platform)
	assert.Equal(t, rec.Endpoint, back.Endpoint)
	require.Len(t, back.Capabilities, 2)
	assert.True(t, back.Capabilities[0].ReadOnly)
	assert.True(t, back.Capabilities[1].RequiresApproval)
	assert.Equal(t, PlatformMeraki, back.Capabilities[1].Platform)
}

func TestBackendRecordUnmarshalDefaults(t *testing.T) {
	raw := `{
		"name": "xdr_mcp",
		"attributes": {"platform": "xdr", "endpoint": "http://xdr-mcp:8005"},
		"modules": {"mcp_server": {"tools": [{"name": "xdr_incidents"}]}}
	}`

	var rec BackendRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, "1.0.0", rec.Version)
	assert.Equal(t, "streamable_http", rec.Transport)
	require.Len(t, rec.Capabilities, 1)
	assert.True(t, rec.Capabilities[0].ReadOnly, "read_only defaults to true")
	assert.Equal(t, PlatformXDR, rec.Capabilities[0].Platform)
}

func TestBackendRecordValidate(t *testing.T) {
	good := BackendRecord{Name: "ise_mcp", Platform: PlatformISE, Endpoint: "http://ise-mcp:8011"}
	assert.NoError(t, good.Validate())

	noName := BackendRecord{Endpoint: "http://x:1"}
	assert.Error(t, noName.Validate())

	badEndpoint := BackendRecord{Name: "x", Endpoint: "not a url"}
	assert.Error(t, badEndpoint.Validate())

	crossPlatform := BackendRecord{
		Name:     "ise_mcp",
		Platform: PlatformISE,
		Endpoint: "http://ise-mcp:8011",
		Capabilities: []Capability{
			{ToolName: "meraki_health", Platform: PlatformMeraki},
		},
	}
	assert.Error(t, crossPlatform.Validate())

	synthesizer := BackendRecord{
		Name:     "infer_mcp",
		Platform: PlatformInfer,
		Endpoint: "http://infer-mcp:8007",
		Capabilities: []Capability{
			{ToolName: "catalyst_probe", Platform: PlatformCatalystCenter},
		},
	}
	assert.NoError(t, synthesizer.Validate(), "infer records may mix platforms")
}
