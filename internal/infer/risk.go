package infer

import (
	"math"

	"github.com/netopscore/netops-gateway/internal/model"
)

// RiskBreakdown is the composite network risk score with its
// components. Total is always within [0, 100].
type RiskBreakdown struct {
	Total           float64 `json:"total"`
	Tier            string  `json:"tier"`
	EventScore      float64 `json:"event_score"`
	AnomalyScore    float64 `json:"anomaly_score"`
	PredictionScore float64 `json:"prediction_score"`
	EventCount      int     `json:"event_count"`
	ActivePlatforms int     `json:"active_platforms"`
	BufferSize      int     `json:"buffer_size"`
	IncidentCount   int     `json:"incident_count"`
}

var severityWeights = map[model.Severity]float64{
	model.SeverityCritical: 15,
	model.SeverityHigh:     8,
	model.SeverityMedium:   3,
	model.SeverityLow:      1,
	model.SeverityInfo:     0,
}

// eventRiskScore sums per-event severity weights, capped at 60
func eventRiskScore(events []model.Event) float64 {
	score := 0.0
	for _, e := range events {
		score += severityWeights[e.Severity]
	}
	return math.Min(60, score)
}

// anomalyRiskScore counts confident anomalies, 5 points each, capped at 20
func anomalyRiskScore(anomalies []Anomaly) float64 {
	confident := 0
	for _, a := range anomalies {
		if a.Confidence >= 0.7 {
			confident++
		}
	}
	return math.Min(20, float64(confident)*5)
}

// predictionRiskScore weighs predictions by risk level, capped at 20
func predictionRiskScore(predictions []Prediction) float64 {
	score := 0.0
	for _, p := range predictions {
		switch p.RiskLevel {
		case "critical":
			score += 15
		case "high":
			score += 8
		}
	}
	return math.Min(20, score)
}

// RiskTier maps a 0-100 score onto its four-tier label
func RiskTier(total float64) string {
	switch {
	case total <= 25:
		return "LOW"
	case total <= 50:
		return "MODERATE"
	case total <= 75:
		return "ELEVATED"
	default:
		return "CRITICAL"
	}
}
