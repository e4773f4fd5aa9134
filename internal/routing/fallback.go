package routing

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/netopscore/netops-gateway/internal/model"
)

// fallbackBackend is one static routing seed used when discovery
// returns nothing at startup.
type fallbackBackend struct {
	name     string
	platform model.Platform
	port     int
}

var fallbackBackends = []fallbackBackend{
	{"catalyst_center_mcp", model.PlatformCatalystCenter, 8001},
	{"meraki_mcp", model.PlatformMeraki, 8002},
	{"thousandeyes_mcp", model.PlatformThousandEyes, 8003},
	{"webex_mcp", model.PlatformWebex, 8004},
	{"xdr_mcp", model.PlatformXDR, 8005},
	{"security_cloud_control_mcp", model.PlatformSecurityCloudControl, 8006},
	{"infer_mcp", model.PlatformInfer, 8007},
	{"appdynamics_mcp", model.PlatformAppDynamics, 8008},
	{"nexus_dashboard_mcp", model.PlatformNexusDashboard, 8009},
	{"sdwan_mcp", model.PlatformSDWAN, 8010},
	{"ise_mcp", model.PlatformISE, 8011},
	{"splunk_mcp", model.PlatformSplunk, 8012},
	{"hypershield_mcp", model.PlatformHypershield, 8013},
}

// StaticFallback builds the default backend records used when the
// directory is empty or unreachable at startup. Hostname is the backend
// name with underscores dashed; the port can be overridden with
// <NAME>_PORT (for example MERAKI_MCP_PORT). Fallback records carry no
// capabilities; tools appear once discovery succeeds.
func StaticFallback() []model.BackendRecord {
	records := make([]model.BackendRecord, 0, len(fallbackBackends))
	for _, b := range fallbackBackends {
		host := strings.ReplaceAll(b.name, "_", "-")
		port := b.port
		if v := os.Getenv(strings.ToUpper(b.name) + "_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
				port = p
			}
		}
		records = append(records, model.BackendRecord{
			Name:      b.name,
			Platform:  b.platform,
			Transport: "streamable_http",
			Endpoint:  fmt.Sprintf("http://%s:%d", host, port),
		})
	}
	return records
}
