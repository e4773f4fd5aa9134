// Package intent classifies free-form operator requests into gateway
// meta-tool invocations. Classification is an ordered regex rule
// table: every row is scanned, the highest-confidence match wins, and
// earlier rows win ties. Entity regexes lift IPs, MACs, hostnames and
// the like out of the raw text so downstream tools receive them as
// structured arguments.
package intent

import (
	"regexp"
	"strings"
)

// Category is the coarse destination for a classified request. Every
// value except help and unknown names a gateway meta-tool directly.
type Category string

const (
	CategoryObservability Category = "observability"
	CategorySecurity      Category = "security"
	CategoryAutomation    Category = "automation"
	CategoryConfiguration Category = "configuration"
	CategoryCompliance    Category = "compliance"
	CategoryIdentity      Category = "identity"
	CategoryStatus        Category = "network_status"
	CategoryHelp          Category = "help"
	CategoryUnknown       Category = "unknown"
)

// Parsed is the result of classifying one request
type Parsed struct {
	Category   Category            `json:"category"`
	Platform   string              `json:"platform,omitempty"`
	Arguments  map[string][]string `json:"arguments,omitempty"`
	Confidence float64             `json:"confidence"`
	RawText    string              `json:"raw_text"`
}

type rule struct {
	re         *regexp.Regexp
	category   Category
	platform   string
	confidence float64
}

func newRule(pattern string, category Category, platform string, confidence float64) rule {
	return rule{
		re:         regexp.MustCompile("(?i)" + pattern),
		category:   category,
		platform:   platform,
		confidence: confidence,
	}
}

// rules is ordered by specificity. The table is a stable contract:
// row order, categories, platform hints, and confidences must not be
// reordered or renumbered, or classifications will silently shift.
var rules = []rule{
	// Status / health
	newRule(`(?:network|overall)\s*(?:status|health|overview)`, CategoryStatus, "", 0.95),
	newRule(`(?:is|are)\s+(?:the\s+)?(?:network|things)\s+(?:ok|healthy|up|down)`, CategoryStatus, "", 0.90),
	newRule(`how(?:'s| is)\s+(?:the\s+)?network`, CategoryStatus, "", 0.90),

	// Platform-specific health
	newRule(`(?:meraki|dashboard)\s+(?:health|status|overview|devices)`, CategoryObservability, "meraki", 0.90),
	newRule(`(?:catalyst|dnac?|catalyst.center)\s+(?:health|status|issues?|devices?)`, CategoryObservability, "catalyst_center", 0.90),
	newRule(`(?:thousandeyes|te|path)\s+(?:health|status|tests?|alerts?)`, CategoryObservability, "thousandeyes", 0.90),
	newRule(`(?:wireless|wifi|wi-fi)\s+(?:health|status|clients?)`, CategoryObservability, "meraki", 0.85),

	// Security
	newRule(`(?:security|threat|xdr)\s+(?:events?|incidents?|alerts?|threats?)`, CategorySecurity, "xdr", 0.90),
	newRule(`(?:malware|amp|ids|ips)\s+(?:events?|detections?|alerts?)`, CategorySecurity, "", 0.90),
	newRule(`(?:lateral\s+movement|suspicious|anomal)`, CategorySecurity, "", 0.85),
	newRule(`(?:firewall|fw)\s+(?:rules?|policies?|status)`, CategorySecurity, "security_cloud_control", 0.85),
	newRule(`(?:hypershield|ebpf)\s+(?:status|enforcement|flows?)`, CategorySecurity, "hypershield", 0.85),

	// Analytics
	newRule(`(?:correlat|root.cause|rca)`, CategoryObservability, "infer", 0.90),
	newRule(`(?:predict|forecast)\s+(?:fail|outage|incident)`, CategoryObservability, "infer", 0.90),
	newRule(`(?:anomal|unusual|abnormal)\s+(?:pattern|behavior|traffic)`, CategoryObservability, "infer", 0.85),
	newRule(`risk\s+score`, CategoryCompliance, "infer", 0.90),

	// Automation
	newRule(`(?:run|execute)\s+(?:command|cli|show)`, CategoryAutomation, "catalyst_center", 0.90),
	newRule(`(?:remediat|fix|restart|reboot)`, CategoryAutomation, "", 0.80),
	newRule(`quarantine\s+(?:endpoint|device|mac|(?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2})`, CategoryAutomation, "ise", 0.90),

	// Configuration
	newRule(`(?:show|get)\s+(?:config|configuration|running)`, CategoryConfiguration, "", 0.85),
	newRule(`(?:topology|site.hierarchy|fabric)`, CategoryConfiguration, "", 0.80),
	newRule(`(?:list|show)\s+(?:networks?|devices?|inventory)`, CategoryConfiguration, "", 0.80),

	// Compliance
	newRule(`(?:compliance|posture|audit|certificate)`, CategoryCompliance, "", 0.85),
	newRule(`(?:policy\s+drift|regulatory)`, CategoryCompliance, "", 0.80),

	// Identity
	newRule(`(?:who|session|authentication|radius|dot1x)`, CategoryIdentity, "ise", 0.85),
	newRule(`(?:profil|endpoint\s+type|device\s+type)`, CategoryIdentity, "ise", 0.80),

	// Help
	newRule(`(?:help|what\s+can\s+you|capabilities|tools?|commands?)`, CategoryHelp, "", 0.95),
}

type entityPattern struct {
	kind string
	re   *regexp.Regexp
}

// Entity extraction runs over the raw text so original spelling is
// preserved; matching itself is case-insensitive.
var entityPatterns = []entityPattern{
	{"ip_address", regexp.MustCompile(`(?i)\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"mac_address", regexp.MustCompile(`(?i)\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)},
	{"hostname", regexp.MustCompile(`(?i)\b(?:switch|router|ap|wlc|fw|leaf|spine)[-_][\w-]+\b`)},
	{"network_id", regexp.MustCompile(`(?i)\b[LN]_\d+\b`)},
	{"device_id", regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)},
	{"severity", regexp.MustCompile(`(?i)\b(?:critical|high|medium|low|p[1-4])\b`)},
}

// Classify parses a request into its category, platform hint, and
// extracted entities. Classification is deterministic: the same text
// always yields the same category, platform, and confidence.
func Classify(text string) Parsed {
	normalized := strings.ToLower(strings.TrimSpace(text))

	parsed := Parsed{
		Category:   CategoryUnknown,
		Confidence: 0.0,
		RawText:    text,
	}
	for _, r := range rules {
		if r.confidence > parsed.Confidence && r.re.MatchString(normalized) {
			parsed.Category = r.category
			parsed.Platform = r.platform
			parsed.Confidence = r.confidence
		}
	}

	for _, ep := range entityPatterns {
		matches := ep.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		if ep.kind == "severity" {
			for i, m := range matches {
				matches[i] = strings.ToLower(m)
			}
		}
		if parsed.Arguments == nil {
			parsed.Arguments = make(map[string][]string)
		}
		parsed.Arguments[ep.kind] = matches
	}

	return parsed
}

// Invocation is the gateway call derived from a parsed intent. When
// Reply is set the request is answered directly and no tool is called.
type Invocation struct {
	Tool      string
	Arguments map[string]interface{}
	Reply     string
}

const clarification = "🤔 I'm not sure what you're asking. Try **help** to see what I can do, or rephrase your question."

// RouteIntent maps a parsed intent onto a meta-tool invocation. Help
// answers inline, low-confidence unknowns ask for a rephrase, and
// everything else dispatches to the category's meta-tool with the
// platform hint as a filter and the extracted entities as arguments.
func RouteIntent(p Parsed) Invocation {
	switch p.Category {
	case CategoryHelp:
		return Invocation{Reply: FormatHelp()}
	case CategoryUnknown:
		if p.Confidence < 0.5 {
			return Invocation{Reply: clarification}
		}
		// Confident but uncategorized: treat as a general
		// observability query
		p.Category = CategoryObservability
	}

	args := map[string]interface{}{
		"query": p.RawText,
	}
	if p.Platform != "" {
		args["platforms"] = []string{p.Platform}
	}
	for kind, values := range p.Arguments {
		args[kind] = values
	}

	return Invocation{Tool: string(p.Category), Arguments: args}
}

// FormatHelp renders the capability summary shown for help requests
func FormatHelp() string {
	return `## NetOps Gateway — What can I do?

**Quick Status:**
- "How's the network?" — Cross-platform health overview
- "Network status" — All servers connectivity check

**Observability:**
- "Meraki health" / "Catalyst Center issues" / "ThousandEyes status"
- "Wireless client health" / "Show me network health"
- "Abnormal traffic?" / "Run correlation" / "Root cause analysis"

**Security:**
- "Security events" / "XDR threats" / "Malware detections"
- "Firewall rules" / "Hypershield enforcement"
- "Risk score" — network-wide risk assessment

**Configuration:**
- "List devices" / "Show topology" / "Get device config"
- "List Meraki networks"

**Automation:**
- "Run show version on [device]" ⚠️ _Requires approval_
- "Quarantine endpoint [MAC]" ⚠️ _Requires approval_

**Compliance:**
- "Posture status" / "Certificate expiry" / "Compliance audit"

**Identity:**
- "Active sessions" / "Auth failures" / "Profiled endpoints"
`
}
