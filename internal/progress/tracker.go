package progress

import (
	"time"

	"watch-progress/internal/interval"
)

// Default skip policy: one sample per second, and a gap larger than two
// sample intervals is a seek rather than playback.
const (
	DefaultSampleInterval = 1.0
	DefaultSkipFactor     = 2.0
)

// State tells whether a tracker has an open span.
type State string

const (
	// StateIdle means no span is open; the next sample only anchors.
	StateIdle State = "idle"
	// StateTracking means a span is open from the anchor position.
	StateTracking State = "tracking"
)

// Outcome classifies what a tracker call did.
type Outcome string

const (
	OutcomeRejected   Outcome = "rejected"   // sample outside [0, duration)
	OutcomeAnchored   Outcome = "anchored"   // first sample of a span
	OutcomeContinuous Outcome = "continuous" // span extended and merged
	OutcomeSkipped    Outcome = "skipped"    // gap above threshold, nothing merged
	OutcomeClosed     Outcome = "closed"     // span closed and merged
	OutcomeDiscarded  Outcome = "discarded"  // span closed without merging
	OutcomeSeeked     Outcome = "seeked"
	OutcomeReset      Outcome = "reset"
)

// SkipPolicy decides when two consecutive samples are too far apart to be
// continuous playback.
type SkipPolicy struct {
	SampleInterval float64 // seconds between samples
	Factor         float64 // allowed multiple of SampleInterval
}

// DefaultSkipPolicy returns the 1s / 2x policy.
func DefaultSkipPolicy() SkipPolicy {
	return SkipPolicy{SampleInterval: DefaultSampleInterval, Factor: DefaultSkipFactor}
}

// Threshold is the largest forward jump still treated as continuous.
func (p SkipPolicy) Threshold() float64 {
	if p.SampleInterval <= 0 {
		p.SampleInterval = DefaultSampleInterval
	}
	if p.Factor <= 0 {
		p.Factor = DefaultSkipFactor
	}
	return p.SampleInterval * p.Factor
}

// IsSkip reports whether moving from prev to next is a skip.
func (p SkipPolicy) IsSkip(prev, next float64) bool {
	return next-prev > p.Threshold()
}

// Commit is the result of a tracker call: the full record after the call and
// whether it differs from what the caller last persisted.
type Commit struct {
	Record  Record
	Outcome Outcome
	Dirty   bool
}

// span is the tagged Idle | Tracking(anchor) variant.
type span struct {
	state  State
	anchor float64
}

// Tracker turns playback samples for one video into a watched-interval set.
// It does no I/O and is not safe for concurrent use; calls for one session
// must be made one at a time.
type Tracker struct {
	videoID      VideoID
	duration     float64
	policy       SkipPolicy
	intervals    []interval.Interval
	lastPosition float64
	percentage   int
	span         span
	now          func() time.Time
}

// NewTracker returns an idle tracker with no watched intervals.
func NewTracker(videoID VideoID, duration float64, policy SkipPolicy) *Tracker {
	return &Tracker{
		videoID:  videoID,
		duration: duration,
		policy:   policy,
		span:     span{state: StateIdle},
		now:      time.Now,
	}
}

// Restore returns an idle tracker seeded from a persisted record. The
// record's intervals are normalised; its stored duration is ignored in
// favour of duration.
func Restore(rec Record, duration float64, policy SkipPolicy) *Tracker {
	t := NewTracker(rec.VideoID, duration, policy)
	t.intervals = interval.Normalize(rec.Intervals)
	if rec.LastPosition > 0 {
		t.lastPosition = rec.LastPosition
	}
	t.percentage = interval.Percentage(t.intervals, duration)
	return t
}

// VideoID returns the tracked video.
func (t *Tracker) VideoID() VideoID { return t.videoID }

// Duration returns the video length the tracker was built with.
func (t *Tracker) Duration() float64 { return t.duration }

// State returns StateIdle or StateTracking.
func (t *Tracker) State() State { return t.span.state }

// Anchor returns the start of the open span; ok is false when idle.
func (t *Tracker) Anchor() (anchor float64, ok bool) {
	if t.span.state != StateTracking {
		return 0, false
	}
	return t.span.anchor, true
}

// Intervals returns a copy of the watched-interval set.
func (t *Tracker) Intervals() []interval.Interval {
	return append([]interval.Interval(nil), t.intervals...)
}

// LastPosition returns where playback should resume.
func (t *Tracker) LastPosition() float64 { return t.lastPosition }

// Percentage returns the cached progress percentage.
func (t *Tracker) Percentage() int { return t.percentage }

// WatchedSeconds returns the unique watched time.
func (t *Tracker) WatchedSeconds() float64 { return interval.TotalWatched(t.intervals) }

// Record returns the persisted projection of the current state.
func (t *Tracker) Record() Record {
	return Record{
		VideoID:       t.videoID,
		Intervals:     t.Intervals(),
		LastPosition:  t.lastPosition,
		TotalDuration: t.duration,
		UpdatedAt:     t.now().UTC(),
	}
}

// Snapshot returns the read model of the current state.
func (t *Tracker) Snapshot() Snapshot {
	return snapshotOf(t.Record(), t.span.state)
}

// IngestSample handles a periodic position sample taken while playing.
func (t *Tracker) IngestSample(currentTime float64) Commit {
	if currentTime < 0 || currentTime >= t.duration {
		return t.commit(OutcomeRejected, false)
	}

	prevPosition := t.lastPosition
	t.lastPosition = currentTime

	if t.span.state == StateIdle {
		t.span = span{state: StateTracking, anchor: currentTime}
		return t.commit(OutcomeAnchored, prevPosition != currentTime)
	}

	prev := t.span.anchor
	t.span.anchor = currentTime
	if t.policy.IsSkip(prev, currentTime) {
		return t.commit(OutcomeSkipped, prevPosition != currentTime)
	}

	merged := t.merge(interval.Interval{Start: prev, End: currentTime})
	return t.commit(OutcomeContinuous, merged || prevPosition != currentTime)
}

// CloseSpan ends continuous playback at endTime (pause, seek start or end of
// media). A forward span inside the video is merged; anything else is
// discarded. The tracker is idle afterwards and lastPosition is endTime.
func (t *Tracker) CloseSpan(endTime float64) Commit {
	prevPosition := t.lastPosition
	t.lastPosition = endTime

	if t.span.state == StateIdle {
		return t.commit(OutcomeDiscarded, prevPosition != endTime)
	}

	prev := t.span.anchor
	t.span = span{state: StateIdle}
	if endTime <= prev || endTime > t.duration {
		return t.commit(OutcomeDiscarded, prevPosition != endTime)
	}

	merged := t.merge(interval.Interval{Start: prev, End: endTime})
	return t.commit(OutcomeClosed, merged || prevPosition != endTime)
}

// Seek closes the open span at from, then moves the resume point to to.
func (t *Tracker) Seek(from, to float64) Commit {
	closed := t.CloseSpan(from)
	dirty := closed.Dirty || t.lastPosition != to
	t.lastPosition = to

	outcome := OutcomeSeeked
	if closed.Outcome == OutcomeClosed {
		outcome = OutcomeClosed
	}
	return t.commit(outcome, dirty)
}

// End records that playback reached the end of the video.
func (t *Tracker) End() Commit {
	return t.CloseSpan(t.duration)
}

// Reset forgets all watched intervals and the resume point.
func (t *Tracker) Reset() Commit {
	t.intervals = nil
	t.lastPosition = 0
	t.percentage = 0
	t.span = span{state: StateIdle}
	return t.commit(OutcomeReset, true)
}

// merge adds iv to the watched set and reports whether coverage grew.
func (t *Tracker) merge(iv interval.Interval) bool {
	before := interval.TotalWatched(t.intervals)
	t.intervals = interval.Add(t.intervals, iv)
	t.percentage = interval.Percentage(t.intervals, t.duration)
	return interval.TotalWatched(t.intervals) != before
}

func (t *Tracker) commit(outcome Outcome, dirty bool) Commit {
	return Commit{Record: t.Record(), Outcome: outcome, Dirty: dirty}
}
