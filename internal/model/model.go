// Package model defines the shared domain types of the gateway: the
// platform/role/severity taxonomies, correlated events exchanged on the bus,
// and the backend records exchanged with the directory service.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is one of the six meta-tool categories used for fan-out dispatch.
type Role string

// Gateway role taxonomy.
const (
	RoleObservability Role = "observability"
	RoleSecurity      Role = "security"
	RoleAutomation    Role = "automation"
	RoleConfiguration Role = "configuration"
	RoleCompliance    Role = "compliance"
	RoleIdentity      Role = "identity"
)

// AllRoles returns the six roles in their canonical order.
func AllRoles() []Role {
	return []Role{
		RoleObservability,
		RoleSecurity,
		RoleAutomation,
		RoleConfiguration,
		RoleCompliance,
		RoleIdentity,
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleObservability, RoleSecurity, RoleAutomation,
		RoleConfiguration, RoleCompliance, RoleIdentity:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole converts a canonical lowercase identifier into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Platform identifies a backend platform server.
type Platform string

// Supported platforms.
const (
	PlatformCatalystCenter       Platform = "catalyst_center"
	PlatformMeraki               Platform = "meraki"
	PlatformThousandEyes         Platform = "thousandeyes"
	PlatformWebex                Platform = "webex"
	PlatformXDR                  Platform = "xdr"
	PlatformSecurityCloudControl Platform = "security_cloud_control"
	PlatformAppDynamics          Platform = "appdynamics"
	PlatformNexusDashboard       Platform = "nexus_dashboard"
	PlatformSDWAN                Platform = "sdwan"
	PlatformISE                  Platform = "ise"
	PlatformSplunk               Platform = "splunk"
	PlatformHypershield          Platform = "hypershield"
	PlatformServiceNow           Platform = "servicenow"
	PlatformNetBox               Platform = "netbox"
	PlatformInfer                Platform = "infer"
)

// AllPlatforms returns every known platform tag.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformCatalystCenter,
		PlatformMeraki,
		PlatformThousandEyes,
		PlatformWebex,
		PlatformXDR,
		PlatformSecurityCloudControl,
		PlatformAppDynamics,
		PlatformNexusDashboard,
		PlatformSDWAN,
		PlatformISE,
		PlatformSplunk,
		PlatformHypershield,
		PlatformServiceNow,
		PlatformNetBox,
		PlatformInfer,
	}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	for _, known := range AllPlatforms() {
		if p == known {
			return true
		}
	}
	return false
}

func (p Platform) String() string { return string(p) }

// ParsePlatform converts a canonical lowercase identifier into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return p, nil
}

// Severity is the five-level event severity scale.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank maps a severity to its numeric rank: critical=5 down to info=1.
// Unknown values rank 0 so they always compare below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool { return s.Rank() > 0 }

func (s Severity) String() string { return string(s) }

// SeverityRank is the rank of a raw severity string. Convenience for
// callers holding untyped values out of JSON payloads.
func SeverityRank(s string) int { return Severity(s).Rank() }

// Event is a correlated cross-platform event. Instances are immutable
// after construction; analytics code copies slices before deriving from
// them. The JSON shape is the bus envelope contract.
type Event struct {
	EventID          string                 `json:"event_id"`
	SourcePlatform   Platform               `json:"source_platform"`
	EventType        string                 `json:"event_type"`
	Severity         Severity               `json:"severity"`
	Timestamp        time.Time              `json:"timestamp"`
	AffectedEntities []string               `json:"affected_entities"`
	RawData          map[string]interface{} `json:"raw_data,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	CorrelationGroup string                 `json:"correlation_group,omitempty"`
}

// NewEvent builds an event with a fresh ID and a UTC timestamp.
func NewEvent(platform Platform, eventType string, severity Severity, entities []string) Event {
	return Event{
		EventID:          uuid.NewString(),
		SourcePlatform:   platform,
		EventType:        eventType,
		Severity:         severity,
		Timestamp:        time.Now().UTC(),
		AffectedEntities: entities,
	}
}

// OverlapsWith reports whether two events fall within the window and share
// at least one affected entity. This is the pairwise test the correlation
// engine anchors groups on.
func (e Event) OverlapsWith(other Event, windowSeconds int) bool {
	delta := e.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > time.Duration(windowSeconds)*time.Second {
		return false
	}
	for _, a := range e.AffectedEntities {
		for _, b := range other.AffectedEntities {
			if a == b {
				return true
			}
		}
	}
	return false
}

// EventFromPayload maps a decoded bus payload onto an Event. Missing
// optional fields default (fresh ID, severity info, current time); an
// unknown source platform is an error and the payload is dropped upstream.
func EventFromPayload(payload map[string]interface{}) (Event, error) {
	platform, err := ParsePlatform(stringField(payload, "source_platform"))
	if err != nil {
		return Event{}, err
	}

	eventType := stringField(payload, "event_type")
	if eventType == "" {
		return Event{}, fmt.Errorf("event payload missing event_type")
	}

	ev := Event{
		EventID:          stringField(payload, "event_id"),
		SourcePlatform:   platform,
		EventType:        eventType,
		Severity:         SeverityInfo,
		Timestamp:        time.Now().UTC(),
		AffectedEntities: stringSliceField(payload, "affected_entities"),
		Tags:             stringSliceField(payload, "tags"),
		CorrelationGroup: stringField(payload, "correlation_group"),
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if sev := Severity(stringField(payload, "severity")); sev.Valid() {
		ev.Severity = sev
	}
	if raw, ok := payload["raw_data"].(map[string]interface{}); ok {
		ev.RawData = raw
	}
	if ts := stringField(payload, "timestamp"); ts != "" {
		if parsed, perr := time.Parse(time.RFC3339, ts); perr == nil {
			ev.Timestamp = parsed.UTC()
		}
	}
	return ev, nil
}

// EventFromSecurityAlert maps the looser security-alert payload shape onto
// an Event. Alerts name their platform under "source" and may omit most
// fields; defaults are xdr / security_alert / medium.
func EventFromSecurityAlert(payload map[string]interface{}) Event {
	platform := Platform(stringField(payload, "source"))
	if !platform.Valid() {
		platform = PlatformXDR
	}
	eventType := stringField(payload, "event_type")
	if eventType == "" {
		eventType = "security_alert"
	}
	severity := Severity(stringField(payload, "severity"))
	if !severity.Valid() {
		severity = SeverityMedium
	}

	ev := NewEvent(platform, eventType, severity, stringSliceField(payload, "affected_entities"))
	if raw, ok := payload["data"].(map[string]interface{}); ok {
		ev.RawData = raw
	}
	return ev
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
