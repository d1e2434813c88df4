package calendar

import (
	"sort"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey reduces an event start/end value to the canonical YYYY-MM-DD
// bucket key. Date-only values are already in the key space and are used
// as-is; timestamps are converted to the local calendar day in loc.
// Mixing UTC and local derivations here would put events on the wrong
// day, so every lookup must go through this one function.
func DateKey(value string, loc *time.Location) string {
	if value == "" {
		return ""
	}
	if _, err := time.ParseInLocation(dateKeyLayout, value, loc); err == nil {
		return value
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return ""
	}
	return t.In(loc).Format(dateKeyLayout)
}

// GroupByDate buckets events by the DateKey of their start. Bucket order
// preserves input order, which the remote source guarantees to be
// chronological by start time. Pure: no state, deterministic.
func GroupByDate(events []Event, loc *time.Location) map[string][]Event {
	grouped := make(map[string][]Event)
	for _, ev := range events {
		key := DateKey(ev.Start, loc)
		if key == "" {
			continue
		}
		grouped[key] = append(grouped[key], ev)
	}
	return grouped
}

// sortedKeys returns the bucket keys in ascending date order. The
// YYYY-MM-DD form makes lexicographic and chronological order identical.
func sortedKeys(grouped map[string][]Event) []string {
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
