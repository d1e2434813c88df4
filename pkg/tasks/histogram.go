package tasks

import "time"

// CompletionHistogram returns one bucket per calendar day for the last
// `days` days, oldest first. Each bucket counts completed items created
// on or before that day, normalized into [1, maxBar] against the largest
// bucket so the result can drive a fixed-height bar chart directly.
// Deterministic for a fixed collection and clock.
func (s *Store) CompletionHistogram(days, maxBar int) []int {
	if days <= 0 {
		return nil
	}
	if maxBar < 1 {
		maxBar = 1
	}

	todos := s.Load()
	now := s.now()

	counts := make([]int, days)
	maxCount := 0
	for i := 0; i < days; i++ {
		// Day i is (days-1-i) days before today, end of day.
		dayEnd := endOfDay(now.AddDate(0, 0, -(days - 1 - i)))
		n := 0
		for _, t := range todos {
			if t.Completed && !t.CreatedAt.After(dayEnd) {
				n++
			}
		}
		counts[i] = n
		if n > maxCount {
			maxCount = n
		}
	}

	bars := make([]int, days)
	for i, n := range counts {
		if maxCount == 0 {
			bars[i] = 1
			continue
		}
		b := n * maxBar / maxCount
		if b < 1 {
			b = 1
		}
		bars[i] = b
	}
	return bars
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
