package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-progress/internal/interval"
)

func newTestTracker(duration float64) *Tracker {
	return NewTracker("lecture-1", duration, DefaultSkipPolicy())
}

func TestSkipPolicy_Threshold(t *testing.T) {
	assert.Equal(t, 2.0, DefaultSkipPolicy().Threshold())
	assert.Equal(t, 2.0, SkipPolicy{}.Threshold())
	assert.Equal(t, 1.5, SkipPolicy{SampleInterval: 0.5, Factor: 3}.Threshold())

	p := DefaultSkipPolicy()
	assert.False(t, p.IsSkip(10, 12))
	assert.True(t, p.IsSkip(10, 12.01))
	assert.False(t, p.IsSkip(10, 3), "backward jumps are never skips")
}

func TestTracker_first_sample_only_anchors(t *testing.T) {
	tr := newTestTracker(100)

	c := tr.IngestSample(10)
	assert.Equal(t, OutcomeAnchored, c.Outcome)
	assert.True(t, c.Dirty)
	assert.Empty(t, c.Record.Intervals)
	assert.Equal(t, StateTracking, tr.State())

	anchor, ok := tr.Anchor()
	require.True(t, ok)
	assert.Equal(t, 10.0, anchor)
}

func TestTracker_continuous_and_skip(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(10)

	c := tr.IngestSample(11)
	assert.Equal(t, OutcomeContinuous, c.Outcome)
	assert.Equal(t, []interval.Interval{{Start: 10, End: 11}}, c.Record.Intervals)

	c = tr.IngestSample(20)
	assert.Equal(t, OutcomeSkipped, c.Outcome)
	assert.Equal(t, []interval.Interval{{Start: 10, End: 11}}, c.Record.Intervals)
	assert.Equal(t, 20.0, c.Record.LastPosition)

	anchor, _ := tr.Anchor()
	assert.Equal(t, 20.0, anchor)
}

func TestTracker_skip_from_anchor_records_nothing(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(10)

	c := tr.IngestSample(20)
	assert.Equal(t, OutcomeSkipped, c.Outcome)
	assert.Empty(t, tr.Intervals())
	assert.Equal(t, StateTracking, tr.State())
}

func TestTracker_out_of_range_samples_rejected(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(10)

	for _, sample := range []float64{-1, 100, 150} {
		c := tr.IngestSample(sample)
		assert.Equal(t, OutcomeRejected, c.Outcome)
		assert.False(t, c.Dirty)
	}
	anchor, _ := tr.Anchor()
	assert.Equal(t, 10.0, anchor)
	assert.Equal(t, 10.0, tr.LastPosition())
}

func TestTracker_unknown_duration_rejects_samples(t *testing.T) {
	tr := newTestTracker(0)
	c := tr.IngestSample(0)
	assert.Equal(t, OutcomeRejected, c.Outcome)
	assert.Equal(t, StateIdle, tr.State())
	assert.Equal(t, 0, tr.Percentage())
}

func TestTracker_pause_closes_span(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(10)
	tr.IngestSample(11)
	tr.IngestSample(12)

	c := tr.CloseSpan(12.5)
	assert.Equal(t, OutcomeClosed, c.Outcome)
	assert.Equal(t, []interval.Interval{{Start: 10, End: 12.5}}, c.Record.Intervals)
	assert.Equal(t, 2.5, tr.WatchedSeconds())
	assert.Equal(t, StateIdle, tr.State())
	assert.Equal(t, 12.5, tr.LastPosition())
}

func TestTracker_backward_seek_discards_span(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(40)

	c := tr.CloseSpan(30)
	assert.Equal(t, OutcomeDiscarded, c.Outcome)
	assert.Empty(t, c.Record.Intervals)
	assert.Equal(t, 30.0, tr.LastPosition())
	assert.Equal(t, StateIdle, tr.State())

	_, ok := tr.Anchor()
	assert.False(t, ok)
}

func TestTracker_close_beyond_duration_discards(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(98)

	c := tr.CloseSpan(101)
	assert.Equal(t, OutcomeDiscarded, c.Outcome)
	assert.Empty(t, tr.Intervals())
	assert.Equal(t, 101.0, tr.LastPosition())
}

func TestTracker_close_when_idle_updates_position(t *testing.T) {
	tr := newTestTracker(100)

	c := tr.CloseSpan(33)
	assert.Equal(t, OutcomeDiscarded, c.Outcome)
	assert.True(t, c.Dirty)
	assert.Equal(t, 33.0, tr.LastPosition())

	c = tr.CloseSpan(33)
	assert.False(t, c.Dirty, "same position twice is not a change")
}

func TestTracker_rewatch_counts_once(t *testing.T) {
	tr := newTestTracker(100)
	for s := 0.0; s <= 29; s++ {
		tr.IngestSample(s)
	}
	tr.CloseSpan(30)
	require.Equal(t, 30.0, tr.WatchedSeconds())

	tr.Seek(30, 10)
	for s := 10.0; s <= 19; s++ {
		tr.IngestSample(s)
	}
	c := tr.CloseSpan(20)

	assert.Equal(t, OutcomeClosed, c.Outcome)
	assert.Equal(t, 30.0, tr.WatchedSeconds())
	assert.Equal(t, 30, tr.Percentage())
}

func TestTracker_end_closes_at_duration(t *testing.T) {
	tr := newTestTracker(60)
	tr.IngestSample(58)
	tr.IngestSample(59)

	c := tr.End()
	assert.Equal(t, OutcomeClosed, c.Outcome)
	assert.Equal(t, []interval.Interval{{Start: 58, End: 60}}, c.Record.Intervals)
	assert.Equal(t, 60.0, tr.LastPosition())
}

func TestTracker_seek_forward_does_not_count_skipped_range(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(5)
	tr.IngestSample(6)

	c := tr.Seek(6.4, 80)
	assert.Equal(t, OutcomeClosed, c.Outcome)
	assert.Equal(t, []interval.Interval{{Start: 5, End: 6.4}}, c.Record.Intervals)
	assert.Equal(t, 80.0, tr.LastPosition())
	assert.Equal(t, StateIdle, tr.State())

	c = tr.Seek(80, 80)
	assert.Equal(t, OutcomeSeeked, c.Outcome)
	assert.False(t, c.Dirty)
}

func TestTracker_Reset(t *testing.T) {
	tr := newTestTracker(100)
	tr.IngestSample(0)
	tr.IngestSample(1)

	c := tr.Reset()
	assert.Equal(t, OutcomeReset, c.Outcome)
	assert.True(t, c.Dirty)
	assert.Empty(t, tr.Intervals())
	assert.Zero(t, tr.LastPosition())
	assert.Zero(t, tr.Percentage())
	assert.Equal(t, StateIdle, tr.State())
}

func TestTracker_percentage(t *testing.T) {
	tr := Restore(Record{VideoID: "v", Intervals: []interval.Interval{{Start: 0, End: 50}}}, 100, DefaultSkipPolicy())
	assert.Equal(t, 50, tr.Percentage())
	assert.Equal(t, "0:50", tr.Snapshot().Watched)
}

func TestRestore_normalises_record(t *testing.T) {
	rec := Record{
		VideoID:       "v",
		Intervals:     []interval.Interval{{Start: 20, End: 10}, {Start: 5, End: 8}, {Start: 0, End: 6}, {Start: 3, End: 3}},
		LastPosition:  -4,
		TotalDuration: 999,
	}
	tr := Restore(rec, 40, DefaultSkipPolicy())

	assert.Equal(t, []interval.Interval{{Start: 0, End: 8}}, tr.Intervals())
	assert.Zero(t, tr.LastPosition())
	assert.Equal(t, 40.0, tr.Duration())
	assert.Equal(t, 20, tr.Percentage())
	assert.Equal(t, StateIdle, tr.State())
}

func TestTracker_custom_policy(t *testing.T) {
	tr := NewTracker("v", 100, SkipPolicy{SampleInterval: 5, Factor: 2})
	tr.IngestSample(0)

	c := tr.IngestSample(9)
	assert.Equal(t, OutcomeContinuous, c.Outcome)

	c = tr.IngestSample(20)
	assert.Equal(t, OutcomeSkipped, c.Outcome)
	assert.Equal(t, 9.0, tr.WatchedSeconds())
}
