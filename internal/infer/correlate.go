package infer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/netopscore/netops-gateway/internal/model"
)

// Group is a correlated set of events sharing entities within a time
// window. Events are time-ascending; the first event is the seed.
type Group struct {
	CorrelationID    string
	Events           []model.Event
	Platforms        []string
	Severity         model.Severity
	TimeSpan         time.Duration
	AffectedEntities []string
}

// EventCount returns the number of events in the group
func (g Group) EventCount() int { return len(g.Events) }

// Correlate groups events by entity overlap within the window. The
// grouping is seed-anchored: each ungrouped event in time order becomes
// a seed and absorbs every later ungrouped event that overlaps with the
// seed itself. Only groups of two or more events are returned.
func Correlate(events []model.Event, windowSeconds int) []Group {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	used := make([]bool, len(sorted))
	var groups []Group

	for i, seed := range sorted {
		if used[i] {
			continue
		}
		members := []model.Event{seed}
		used[i] = true
		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			if seed.OverlapsWith(sorted[j], windowSeconds) {
				members = append(members, sorted[j])
				used[j] = true
			}
		}
		if len(members) > 1 {
			groups = append(groups, newGroup(members))
		}
	}

	return groups
}

// newGroup derives the group summary from its time-ordered members
func newGroup(members []model.Event) Group {
	g := Group{
		CorrelationID: uuid.NewString(),
		Events:        members,
		Severity:      members[0].Severity,
		TimeSpan:      members[len(members)-1].Timestamp.Sub(members[0].Timestamp),
	}

	maxRank := g.Severity.Rank()
	seenPlatform := make(map[string]bool)
	seenEntity := make(map[string]bool)
	for _, e := range members {
		if rank := e.Severity.Rank(); rank > maxRank {
			maxRank = rank
			g.Severity = e.Severity
		}
		p := string(e.SourcePlatform)
		if !seenPlatform[p] {
			seenPlatform[p] = true
			g.Platforms = append(g.Platforms, p)
		}
		for _, entity := range e.AffectedEntities {
			if !seenEntity[entity] {
				seenEntity[entity] = true
				g.AffectedEntities = append(g.AffectedEntities, entity)
			}
		}
	}

	return g
}
