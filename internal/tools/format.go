package tools

import (
	"fmt"
	"strings"
	"time"
)

// Markdown formatting helpers shared by the tool renderers.

// SeverityEmoji maps a severity level to its marker.
func SeverityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🔵"
	default:
		return "⚪"
	}
}

// RiskEmoji maps a prediction risk level to its marker. Unknown levels
// render as low.
func RiskEmoji(riskLevel string) string {
	switch strings.ToLower(riskLevel) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	default:
		return "🔵"
	}
}

// RelativeTime renders a timestamp relative to now: "just now", "5m
// ago", "3h ago", then absolute UTC for anything older than a day.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	delta := time.Since(t)
	switch {
	case delta < time.Minute:
		return "just now"
	case delta < time.Hour:
		return fmt.Sprintf("%dm ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	default:
		return t.UTC().Format("2006-01-02 15:04 UTC")
	}
}

// shortID truncates a correlation or approval ID for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// joinLimited joins up to max items with ", ".
func joinLimited(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	return strings.Join(items, ", ")
}

// titleWords converts snake_case identifiers to spaced Title Case for
// display ("cascading_failure" to "Cascading Failure").
func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
