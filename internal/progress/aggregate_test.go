package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"watch-progress/internal/interval"
)

func TestFold(t *testing.T) {
	// Wednesday.
	now := time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	records := []Record{
		{VideoID: "a", TotalDuration: 100, Intervals: []interval.Interval{{Start: 0, End: 100}}, UpdatedAt: now.Add(-time.Hour)},
		{VideoID: "b", TotalDuration: 200, Intervals: []interval.Interval{{Start: 0, End: 50}}, UpdatedAt: yesterday},
		{VideoID: "c", TotalDuration: 60, Intervals: []interval.Interval{{Start: 0, End: 30}, {Start: 10, End: 20}}, UpdatedAt: now},
	}
	previous := UserProgress{
		TotalWatchTime:  99999,
		CompletedVideos: 9,
		WeeklyProgress:  []float64{1, 2, 3, 4, 5, 6, 7},
	}

	got := Fold(records, previous, now)

	assert.Equal(t, 180.0, got.TotalWatchTime)
	assert.Equal(t, 1, got.CompletedVideos)
	// (100 + 25 + 50) / 3 = 58.33
	assert.Equal(t, 58, got.AverageProgress)
	// a and c were written today: 130s.
	assert.Equal(t, []float64{1, 2, 3, 2.2, 5, 6, 7}, got.WeeklyProgress)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, previous.WeeklyProgress, "previous must not be modified")
}

func TestFold_empty(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) // Sunday
	got := Fold(nil, UserProgress{WeeklyProgress: []float64{4}}, now)

	assert.Zero(t, got.TotalWatchTime)
	assert.Zero(t, got.CompletedVideos)
	assert.Zero(t, got.AverageProgress)
	assert.Equal(t, make([]float64, WeekDays), got.WeeklyProgress)
}

func TestFold_unknown_duration_counts_zero_percent(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	records := []Record{
		{VideoID: "a", TotalDuration: 0, Intervals: []interval.Interval{{Start: 0, End: 10}}},
		{VideoID: "b", TotalDuration: 10, Intervals: []interval.Interval{{Start: 0, End: 10}}},
	}
	got := Fold(records, DefaultUserProgress(), now)

	assert.Equal(t, 20.0, got.TotalWatchTime)
	assert.Equal(t, 1, got.CompletedVideos)
	assert.Equal(t, 50, got.AverageProgress)
	assert.Zero(t, got.WeeklyProgress[int(now.Weekday())], "zero UpdatedAt is never today")
}

func TestFold_weekday_slot_counts_whole_record(t *testing.T) {
	now := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC) // Thursday
	records := []Record{
		// Watched long ago, one more second today.
		{VideoID: "lecture", TotalDuration: 3600, Intervals: []interval.Interval{{Start: 0, End: 3000}}, UpdatedAt: now},
	}
	got := Fold(records, DefaultUserProgress(), now)

	assert.Equal(t, 50.0, got.WeeklyProgress[int(now.Weekday())])
}

func TestSameDay_uses_reference_location(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, loc)
	// 23:30 UTC on the 14th is 09:30 on the 15th in UTC+10.
	assert.True(t, sameDay(time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC), now))
	assert.False(t, sameDay(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), now))
}
