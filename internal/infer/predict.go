package infer

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/netopscore/netops-gateway/internal/model"
)

// Prediction is a forecast of a developing failure
type Prediction struct {
	PredictionID                 string   `json:"prediction_id"`
	Type                         string   `json:"type"`
	Description                  string   `json:"description"`
	RiskLevel                    string   `json:"risk_level"`
	Confidence                   float64  `json:"confidence"`
	AffectedPlatform             string   `json:"affected_platform,omitempty"`
	AffectedPlatforms            []string `json:"affected_platforms,omitempty"`
	RecommendedPreemptiveActions []string `json:"recommended_preemptive_actions"`
	TimeHorizonMinutes           int      `json:"time_horizon_minutes"`
}

// PredictFailures applies two escalation heuristics to the event
// window: repeated high-severity events on one platform indicate a
// cascade risk, and high-severity activity spread across three or more
// platforms indicates a developing complex incident. The incident
// history is accepted for future pattern matching and unused for now.
func PredictFailures(events []model.Event, history []Incident) []Prediction {
	_ = history

	var predictions []Prediction

	// Cascade risk: three or more high/critical events on one platform
	counts := make(map[string]int)
	var platformOrder []string
	for _, e := range events {
		if e.Severity.Rank() < 4 {
			continue
		}
		p := string(e.SourcePlatform)
		if _, seen := counts[p]; !seen {
			platformOrder = append(platformOrder, p)
		}
		counts[p]++
	}

	for _, platform := range platformOrder {
		count := counts[platform]
		if count < 3 {
			continue
		}
		predictions = append(predictions, Prediction{
			PredictionID: uuid.NewString(),
			Type:         "cascading_failure",
			Description: fmt.Sprintf("Platform %s showing %d high-severity events — potential cascade risk",
				platform, count),
			RiskLevel:        "high",
			Confidence:       math.Min(0.90, 0.6+float64(count)*0.1),
			AffectedPlatform: platform,
			RecommendedPreemptiveActions: []string{
				fmt.Sprintf("Increase monitoring frequency for %s", platform),
				"Alert NOC team for proactive investigation",
				"Verify redundancy and failover paths are operational",
			},
			TimeHorizonMinutes: 30,
		})
	}

	// Complex incident: three or more platforms with at least one
	// medium-or-worse event among them
	seen := make(map[string]bool)
	var allPlatforms []string
	anyMedium := false
	for _, e := range events {
		p := string(e.SourcePlatform)
		if !seen[p] {
			seen[p] = true
			allPlatforms = append(allPlatforms, p)
		}
		if e.Severity.Rank() >= 3 {
			anyMedium = true
		}
	}

	if len(allPlatforms) >= 3 && anyMedium {
		riskLevel := "high"
		if len(allPlatforms) >= 4 {
			riskLevel = "critical"
		}
		predictions = append(predictions, Prediction{
			PredictionID: uuid.NewString(),
			Type:         "complex_incident",
			Description: fmt.Sprintf("Events across %d platforms suggest a developing complex incident",
				len(allPlatforms)),
			RiskLevel:         riskLevel,
			Confidence:        0.70,
			AffectedPlatforms: allPlatforms,
			RecommendedPreemptiveActions: []string{
				"Initiate incident response bridge",
				"Cross-reference events with recent change windows",
				"Validate core infrastructure (DNS, DHCP, NTP, AAA) health",
			},
			TimeHorizonMinutes: 15,
		})
	}

	return predictions
}
