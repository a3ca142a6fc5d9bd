package progress

import (
	"math"
	"time"
)

// Fold recomputes the cross-video summary from records. Totals are rebuilt
// from scratch; the weekly slots are carried over from previous except the
// slot for now's weekday, which is overwritten with the minutes watched on
// videos whose record was last written on now's calendar day.
//
// The weekday slot is an approximation: records keep no per-day history, so a
// video touched today contributes its whole unique watched time, not just the
// part watched today.
func Fold(records []Record, previous UserProgress, now time.Time) UserProgress {
	out := UserProgress{WeeklyProgress: weekSlots(previous.WeeklyProgress)}

	var (
		percentSum   int
		todaySeconds float64
	)
	for _, rec := range records {
		watched := rec.WatchedSeconds()
		pct := rec.Percentage()

		out.TotalWatchTime += watched
		percentSum += pct
		if pct >= 100 {
			out.CompletedVideos++
		}
		if sameDay(rec.UpdatedAt, now) {
			todaySeconds += watched
		}
	}

	if len(records) > 0 {
		out.AverageProgress = int(math.Round(float64(percentSum) / float64(len(records))))
	}
	out.WeeklyProgress[int(now.Weekday())] = math.Round(todaySeconds/60*10) / 10
	return out
}

// weekSlots returns a copy of slots with exactly WeekDays entries.
func weekSlots(slots []float64) []float64 {
	out := make([]float64, WeekDays)
	copy(out, slots)
	return out
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
