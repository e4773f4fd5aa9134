package infer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/netopscore/netops-gateway/internal/model"
)

// Signal is one required observation in a root-cause template
type Signal struct {
	Platform    string `json:"platform"`
	EventType   string `json:"event_type"`
	MinSeverity string `json:"min_severity"`
}

// Template is a declarative description of a known multi-platform
// failure pattern. Templates are data: operators can replace the
// embedded catalog with a JSON file without a rebuild.
type Template struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	SignalPattern      []Signal `json:"signal_pattern"`
	Correlation        string   `json:"correlation"`
	RootCause          string   `json:"root_cause"`
	RecommendedActions []string `json:"recommended_actions"`
}

// RCAResult is a successful template match against a correlation group
type RCAResult struct {
	TemplateID         string   `json:"template_id"`
	Name               string   `json:"name"`
	RootCause          string   `json:"root_cause"`
	Confidence         float64  `json:"confidence"`
	RecommendedActions []string `json:"recommended_actions"`
	MatchedSignals     int      `json:"matched_signals"`
}

// DefaultCatalog returns the embedded expert-curated template catalog
func DefaultCatalog() []Template {
	return []Template{
		{
			ID:          "rca-wan-app-slowdown",
			Name:        "WAN Degradation → Application Slowdown",
			Description: "ThousandEyes path loss + Meraki VPN tunnel instability → AppDynamics latency spike",
			SignalPattern: []Signal{
				{Platform: "thousandeyes", EventType: "path_loss", MinSeverity: "medium"},
				{Platform: "meraki", EventType: "vpn_tunnel_flap", MinSeverity: "low"},
			},
			Correlation: "shared_wan_segment",
			RootCause:   "WAN path degradation between sites causing VPN instability and application latency",
			RecommendedActions: []string{
				"Check ISP status page and circuit utilization",
				"Review SD-WAN policy for failover path availability",
				"Enable SLA-based path switching if not already active",
			},
		},
		{
			ID:          "rca-switch-wireless-impact",
			Name:        "Switch Failure → Wireless Impact",
			Description: "Catalyst Center switch error → Meraki AP disconnection → client drops",
			SignalPattern: []Signal{
				{Platform: "catalyst_center", EventType: "device_unreachable", MinSeverity: "high"},
				{Platform: "meraki", EventType: "ap_offline", MinSeverity: "medium"},
			},
			Correlation: "shared_infrastructure",
			RootCause:   "Upstream switch failure causing access point disconnections and client drops",
			RecommendedActions: []string{
				"Verify switch stack/HA status in Catalyst Center",
				"Check power delivery to affected APs (PoE budget)",
				"Review spanning-tree topology for convergence issues",
			},
		},
		{
			ID:          "rca-lateral-movement",
			Name:        "Lateral Movement Detection",
			Description: "XDR anomalous traffic + ISE unusual authentication + Meraki new flows",
			SignalPattern: []Signal{
				{Platform: "xdr", EventType: "suspicious_traffic", MinSeverity: "medium"},
				{Platform: "meraki", EventType: "new_flow_spike", MinSeverity: "low"},
			},
			Correlation: "shared_endpoint",
			RootCause:   "Potential lateral movement — compromised endpoint scanning internal network",
			RecommendedActions: []string{
				"Isolate affected endpoint via ISE/Meraki quarantine VLAN",
				"Trigger XDR full investigation on source IP/MAC",
				"Review Secure Firewall logs for C2 beacon patterns",
				"Notify SOC for incident response",
			},
		},
		{
			ID:          "rca-dns-cascade",
			Name:        "DNS Failure → Multi-Platform Cascade",
			Description: "ThousandEyes DNS resolution failure → widespread connectivity issues",
			SignalPattern: []Signal{
				{Platform: "thousandeyes", EventType: "dns_failure", MinSeverity: "high"},
				{Platform: "meraki", EventType: "client_connectivity_drop", MinSeverity: "medium"},
			},
			Correlation: "dns_dependency",
			RootCause:   "DNS infrastructure failure causing cascading connectivity failures across platforms",
			RecommendedActions: []string{
				"Verify DNS server health and response times",
				"Check if secondary/tertiary DNS servers are reachable",
				"Review DHCP-assigned DNS vs. static configurations",
				"Consider enabling DNS caching at branch level",
			},
		},
		{
			ID:          "rca-cert-expiry-cascade",
			Name:        "Certificate Expiry → Authentication Cascade",
			Description: "Security Cloud Control cert alert + ISE auth failures + XDR anomalies",
			SignalPattern: []Signal{
				{Platform: "security_cloud_control", EventType: "certificate_expiry", MinSeverity: "medium"},
			},
			Correlation: "certificate_chain",
			RootCause:   "Expiring or expired certificates causing authentication failures across services",
			RecommendedActions: []string{
				"Identify all certificates expiring within 30 days",
				"Initiate emergency certificate renewal workflow",
				"Verify certificate chain trust on all dependent services",
				"Update certificate monitoring alerts",
			},
		},
	}
}

// LoadCatalog reads a template catalog from a JSON file (a bare array
// of templates). Used when RCA_TEMPLATE_FILE overrides the embedded
// catalog.
func LoadCatalog(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}

	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template catalog %s is empty", path)
	}
	for i, tmpl := range templates {
		if tmpl.ID == "" || len(tmpl.SignalPattern) == 0 {
			return nil, fmt.Errorf("template catalog %s: entry %d missing id or signal_pattern", path, i)
		}
	}
	return templates, nil
}

// MatchRootCause evaluates templates in catalog order against a group
// and returns the first full match. A template matches when every
// platform it names appears in the group and each signal is satisfied
// by at least one event of that platform and event type at or above the
// signal's minimum severity.
func MatchRootCause(g Group, catalog []Template) *RCAResult {
	platforms := make(map[string]bool, len(g.Platforms))
	for _, p := range g.Platforms {
		platforms[p] = true
	}

	for _, tmpl := range catalog {
		if !platformsCovered(tmpl, platforms) {
			continue
		}

		matched := 0
		for _, signal := range tmpl.SignalPattern {
			minRank := model.SeverityRank(signal.MinSeverity)
			for _, event := range g.Events {
				if string(event.SourcePlatform) == signal.Platform &&
					event.EventType == signal.EventType &&
					event.Severity.Rank() >= minRank {
					matched++
					break
				}
			}
		}

		if matched == len(tmpl.SignalPattern) {
			return &RCAResult{
				TemplateID:         tmpl.ID,
				Name:               tmpl.Name,
				RootCause:          tmpl.RootCause,
				Confidence:         0.85 + 0.05*float64(matched),
				RecommendedActions: tmpl.RecommendedActions,
				MatchedSignals:     len(tmpl.SignalPattern),
			}
		}
	}

	return nil
}

func platformsCovered(tmpl Template, platforms map[string]bool) bool {
	for _, signal := range tmpl.SignalPattern {
		if !platforms[signal.Platform] {
			return false
		}
	}
	return true
}
