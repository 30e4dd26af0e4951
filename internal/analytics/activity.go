package analytics

import (
	"sort"
	"time"

	"aibook/internal/journal"
)

// HourlyActivity aggregates journal actions into per-hour buckets by type.
func HourlyActivity(actions []journal.Action) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, a := range actions {
		key := time.Date(a.TS.Year(), a.TS.Month(), a.TS.Day(), a.TS.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][a.Type]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
