package pricing

import (
	"sort"

	"github.com/warp/quote-engine/calendar"
)

// SeasonFor returns the season that prices d, or nil.
//
// When seasons overlap, the one with the latest Start wins; equal starts are
// broken by the greater ID. The outcome never depends on slice order.
// Seasons whose End is before their Start are ignored.
func SeasonFor(seasons []Season, d calendar.Day) *Season {
	var best *Season
	for i := range seasons {
		s := seasons[i]
		if !s.Contains(d) {
			continue
		}
		if best == nil || seasonAfter(s, *best) {
			best = &s
		}
	}
	return best
}

func seasonAfter(a, b Season) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.After(b.Start)
	}
	return a.ID > b.ID
}

// SeasonOverlap names two seasons sharing at least one day.
type SeasonOverlap struct {
	First  Season
	Second Season
}

// Overlaps reports every overlapping pair, sorted by start date. Overlaps are
// legal (SeasonFor resolves them) but usually a configuration mistake.
func Overlaps(seasons []Season) []SeasonOverlap {
	sorted := make([]Season, 0, len(seasons))
	for _, s := range seasons {
		if (calendar.Period{Start: s.Start, End: s.End}).Valid() {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return seasonAfter(sorted[j], sorted[i]) })

	var out []SeasonOverlap
	for i := range sorted {
		pi := calendar.Period{Start: sorted[i].Start, End: sorted[i].End}
		for j := i + 1; j < len(sorted); j++ {
			pj := calendar.Period{Start: sorted[j].Start, End: sorted[j].End}
			if pi.Overlaps(pj) {
				out = append(out, SeasonOverlap{First: sorted[i], Second: sorted[j]})
			}
		}
	}
	return out
}
