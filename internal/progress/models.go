package progress

import (
	"errors"
	"time"

	"watch-progress/internal/interval"
)

// VideoID identifies a video; progress is tracked per video.
type VideoID string

// WeekDays is the number of slots in UserProgress.WeeklyProgress.
const WeekDays = 7

var (
	// ErrSessionNotFound is returned when an event targets a video without an
	// open tracking session.
	ErrSessionNotFound = errors.New("no open session for video")

	// ErrInvalidDuration is returned when a session is opened with a negative
	// duration.
	ErrInvalidDuration = errors.New("duration must not be negative")

	// ErrInvalidVideoID is returned for an empty video id.
	ErrInvalidVideoID = errors.New("video id is required")

	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Record is the persisted projection of a tracking session.
type Record struct {
	VideoID       VideoID             `json:"videoId"`
	Intervals     []interval.Interval `json:"intervals"`
	LastPosition  float64             `json:"lastPosition"`
	TotalDuration float64             `json:"totalDuration"`

	// UpdatedAt is set whenever the record is rewritten. It feeds the
	// weekly slot of the aggregate.
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// WatchedSeconds returns the unique watched time of the record.
func (r Record) WatchedSeconds() float64 {
	return interval.TotalWatched(r.Intervals)
}

// Percentage returns the progress percentage of the record.
func (r Record) Percentage() int {
	return interval.Percentage(r.Intervals, r.TotalDuration)
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	out := r
	if r.Intervals != nil {
		out.Intervals = append([]interval.Interval(nil), r.Intervals...)
	}
	return out
}

// UserProgress is the cross-video summary recomputed by Fold.
type UserProgress struct {
	TotalWatchTime  float64   `json:"totalWatchTime"`
	CompletedVideos int       `json:"completedVideos"`
	AverageProgress int       `json:"averageProgress"`
	WeeklyProgress  []float64 `json:"weeklyProgress"` // minutes; index 0 = Sunday
}

// DefaultUserProgress is the zeroed summary used when nothing is stored.
func DefaultUserProgress() UserProgress {
	return UserProgress{WeeklyProgress: make([]float64, WeekDays)}
}

// Settings are viewer preferences stored next to progress.
type Settings struct {
	Theme         string  `json:"theme"`
	Autoplay      bool    `json:"autoplay"`
	PlaybackSpeed float64 `json:"playbackSpeed"`
	Notifications bool    `json:"notifications"`
	Subtitle      string  `json:"subtitle"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		Theme:         "light",
		Autoplay:      true,
		PlaybackSpeed: 1,
		Notifications: true,
		Subtitle:      "en",
	}
}

// Validate checks theme and playback speed.
func (s Settings) Validate() error {
	if s.Theme != "light" && s.Theme != "dark" {
		return ErrInvalidSettings
	}
	if s.PlaybackSpeed <= 0 {
		return ErrInvalidSettings
	}
	return nil
}

// Snapshot is the read model of a video's progress.
type Snapshot struct {
	VideoID            VideoID             `json:"videoId"`
	State              State               `json:"state"`
	Intervals          []interval.Interval `json:"intervals"`
	LastPosition       float64             `json:"lastPosition"`
	TotalDuration      float64             `json:"totalDuration"`
	WatchedSeconds     float64             `json:"watchedSeconds"`
	Watched            string              `json:"watched"`
	ProgressPercentage int                 `json:"progressPercentage"`
}

// snapshotOf derives a Snapshot from a record.
func snapshotOf(rec Record, state State) Snapshot {
	intervals := rec.Intervals
	if intervals == nil {
		intervals = []interval.Interval{}
	}
	watched := rec.WatchedSeconds()
	return Snapshot{
		VideoID:            rec.VideoID,
		State:              state,
		Intervals:          intervals,
		LastPosition:       rec.LastPosition,
		TotalDuration:      rec.TotalDuration,
		WatchedSeconds:     watched,
		Watched:            interval.FormatElapsed(watched),
		ProgressPercentage: rec.Percentage(),
	}
}

// Event is published after every persisted change to a record.
type Event struct {
	EventID            string    `json:"eventId"`
	VideoID            VideoID   `json:"videoId"`
	Outcome            Outcome   `json:"outcome"`
	WatchedSeconds     float64   `json:"watchedSeconds"`
	ProgressPercentage int       `json:"progressPercentage"`
	LastPosition       float64   `json:"lastPosition"`
	CreatedAt          time.Time `json:"createdAt"`
}
