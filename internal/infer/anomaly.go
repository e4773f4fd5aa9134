package infer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/netopscore/netops-gateway/internal/model"
)

// Anomaly is a detected frequency spike on one platform/event-type
// stream.
type Anomaly struct {
	AnomalyID             string  `json:"anomaly_id"`
	Platform              string  `json:"platform"`
	EventType             string  `json:"event_type"`
	Pattern               string  `json:"pattern"`
	Description           string  `json:"description"`
	MeanIntervalSeconds   float64 `json:"mean_interval_seconds"`
	RecentIntervalSeconds float64 `json:"recent_interval_seconds"`
	StdDev                float64 `json:"std_dev"`
	Confidence            float64 `json:"confidence"`
	Severity              string  `json:"severity"`
}

type streamKey struct {
	platform  string
	eventType string
}

// DetectAnomalies flags streams whose most recent inter-arrival
// interval sits more than two standard deviations below the stream
// mean. Fewer than five events total, or fewer than three on a stream,
// yields nothing; this detector needs a baseline.
func DetectAnomalies(events []model.Event, sensitivity float64) []Anomaly {
	if len(events) < 5 {
		return nil
	}

	buckets := make(map[streamKey][]time.Time)
	var keyOrder []streamKey
	for _, e := range events {
		key := streamKey{platform: string(e.SourcePlatform), eventType: e.EventType}
		if _, seen := buckets[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		buckets[key] = append(buckets[key], e.Timestamp)
	}

	confidence := math.Min(0.95, sensitivity+0.05)

	var anomalies []Anomaly
	for _, key := range keyOrder {
		timestamps := buckets[key]
		if len(timestamps) < 3 {
			continue
		}

		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
		intervals := make([]float64, len(timestamps)-1)
		for i := 1; i < len(timestamps); i++ {
			intervals[i-1] = timestamps[i].Sub(timestamps[i-1]).Seconds()
		}

		mean := 0.0
		for _, v := range intervals {
			mean += v
		}
		mean /= float64(len(intervals))
		if mean == 0 {
			continue
		}

		variance := 0.0
		for _, v := range intervals {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(intervals))
		stdDev := math.Sqrt(variance)

		recent := intervals[len(intervals)-1]
		if stdDev <= 0 || recent >= mean-2*stdDev {
			continue
		}

		severity := "medium"
		if recent < mean*0.2 {
			severity = "high"
		}

		anomalies = append(anomalies, Anomaly{
			AnomalyID: uuid.NewString(),
			Platform:  key.platform,
			EventType: key.eventType,
			Pattern:   "frequency_spike",
			Description: fmt.Sprintf("Event rate for %s:%s is %.1fx above normal",
				key.platform, key.eventType, mean/math.Max(recent, 0.1)),
			MeanIntervalSeconds:   round1(mean),
			RecentIntervalSeconds: round1(recent),
			StdDev:                round1(stdDev),
			Confidence:            confidence,
			Severity:              severity,
		})
	}

	return anomalies
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
