package streak

import (
	"sort"
	"time"
)

// Milestones are the celebrated streak lengths, in days.
var Milestones = []int{3, 7, 14, 30, 60, 100}

// Result holds derived streak metrics. It is recomputed from the full
// entry set on demand and never persisted as a source of truth.
type Result struct {
	// Current is the length of the run of consecutive days ending
	// today or yesterday. Yesterday counts so the streak does not
	// reset before the user's day is over.
	Current int `json:"current_streak"`

	// Longest is the longest run of consecutive days anywhere in the
	// entry history, including the current run.
	Longest int `json:"longest_streak"`

	// LastEntryAt is the timestamp of the most recent entry, nil when
	// there are no entries.
	LastEntryAt *time.Time `json:"last_entry_at"`

	// NextMilestone is the smallest milestone strictly greater than
	// Current, 0 once every milestone has been passed.
	NextMilestone int `json:"next_milestone"`
}

// day is a calendar date, time-of-day discarded.
type day struct {
	year  int
	month time.Month
	date  int
}

func dayOf(t time.Time) day {
	y, m, d := t.Date()
	return day{y, m, d}
}

// ordinal maps a day to a consecutive day number so adjacency checks
// survive month/year boundaries and DST.
func (d day) ordinal() int {
	return int(time.Date(d.year, d.month, d.date, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Calculate derives streak metrics from entry timestamps.
//
// Entries are bucketed by calendar date in each entry's own location;
// a day with any number of entries counts once. Calling twice with the
// same inputs yields identical results.
func Calculate(entries []time.Time, now time.Time) Result {
	if len(entries) == 0 {
		return Result{NextMilestone: Milestones[0]}
	}

	latest := entries[0]
	seen := make(map[day]struct{}, len(entries))
	for _, t := range entries {
		seen[dayOf(t)] = struct{}{}
		if t.After(latest) {
			latest = t
		}
	}

	ordinals := make([]int, 0, len(seen))
	for d := range seen {
		ordinals = append(ordinals, d.ordinal())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordinals)))

	today := dayOf(now).ordinal()

	// Current streak: only alive when the most recent entry day is
	// today or yesterday, then walk back over adjacent days.
	current := 0
	if ordinals[0] == today || ordinals[0] == today-1 {
		current = 1
		for i := 1; i < len(ordinals); i++ {
			if ordinals[i] != ordinals[i-1]-1 {
				break
			}
			current++
		}
	}

	// Longest streak: scan all runs of adjacent days.
	longest, run := 1, 1
	for i := 1; i < len(ordinals); i++ {
		if ordinals[i] == ordinals[i-1]-1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	return Result{
		Current:       current,
		Longest:       longest,
		LastEntryAt:   &latest,
		NextMilestone: nextMilestone(current),
	}
}

// ReachedMilestone reports whether n is exactly a milestone length.
func ReachedMilestone(n int) bool {
	for _, m := range Milestones {
		if n == m {
			return true
		}
	}
	return false
}

func nextMilestone(current int) int {
	for _, m := range Milestones {
		if m > current {
			return m
		}
	}
	return 0
}
