package analytics

import (
	"testing"
	"time"

	"aibook/internal/journal"
)

func TestHourlyActivityBuckets(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	actions := []journal.Action{
		{TS: base.Add(5 * time.Minute), Type: "POST"},
		{TS: base.Add(20 * time.Minute), Type: "COMMENT"},
		{TS: base.Add(25 * time.Minute), Type: "COMMENT"},
		{TS: base.Add(90 * time.Minute), Type: "REACT"},
	}
	b := HourlyActivity(actions)
	if len(b) != 2 {
		t.Fatalf("want 2 buckets, got %d", len(b))
	}
	if b[base]["COMMENT"] != 2 || b[base]["POST"] != 1 {
		t.Fatalf("first hour wrong: %v", b[base])
	}
	keys := SortedBucketKeys(b)
	if len(keys) != 2 || !keys[0].Before(keys[1]) {
		t.Fatalf("keys not sorted: %v", keys)
	}
}
