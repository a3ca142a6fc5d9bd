package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"watch-progress/internal/interval"
	"watch-progress/internal/progress"
)

var _ progress.Store = (*Store)(nil)

// GetRecord implements progress.Store.GetRecord. A row whose intervals
// column cannot be decoded is reported as an error.
func (s *Store) GetRecord(ctx context.Context, id progress.VideoID) (progress.Record, bool, error) {
	if s == nil || s.db == nil {
		return progress.Record{}, false, errMissingDB
	}

	var (
		rawIntervals string
		rec          progress.Record
		updatedAt    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT intervals, last_position, total_duration, updated_at
		FROM video_progress
		WHERE video_id = ?
	`, string(id)).Scan(&rawIntervals, &rec.LastPosition, &rec.TotalDuration, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.Record{}, false, nil
	}
	if err != nil {
		return progress.Record{}, false, fmt.Errorf("storage: get record %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(rawIntervals), &rec.Intervals); err != nil {
		return progress.Record{}, false, fmt.Errorf("storage: decode intervals for %s: %w", id, err)
	}
	rec.VideoID = id
	if updatedAt > 0 {
		rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	}
	return rec, true, nil
}

// PutRecord implements progress.Store.PutRecord.
func (s *Store) PutRecord(ctx context.Context, rec progress.Record) error {
	if s == nil || s.db == nil {
		return errMissingDB
	}

	intervals := rec.Intervals
	if intervals == nil {
		intervals = []interval.Interval{}
	}
	raw, err := json.Marshal(intervals)
	if err != nil {
		return fmt.Errorf("storage: encode intervals for %s: %w", rec.VideoID, err)
	}

	var updatedAt int64
	if !rec.UpdatedAt.IsZero() {
		updatedAt = rec.UpdatedAt.UnixMilli()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO video_progress (video_id, intervals, last_position, total_duration, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			intervals=excluded.intervals,
			last_position=excluded.last_position,
			total_duration=excluded.total_duration,
			updated_at=excluded.updated_at
	`, string(rec.VideoID), string(raw), rec.LastPosition, rec.TotalDuration, updatedAt)
	if err != nil {
		return fmt.Errorf("storage: put record %s: %w", rec.VideoID, err)
	}
	return nil
}

// DeleteRecord implements progress.Store.DeleteRecord.
func (s *Store) DeleteRecord(ctx context.Context, id progress.VideoID) error {
	if s == nil || s.db == nil {
		return errMissingDB
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM video_progress WHERE video_id = ?`, string(id)); err != nil {
		return fmt.Errorf("storage: delete record %s: %w", id, err)
	}
	return nil
}

// ListVideoIDs implements progress.Store.ListVideoIDs.
func (s *Store) ListVideoIDs(ctx context.Context) ([]progress.VideoID, error) {
	if s == nil || s.db == nil {
		return nil, errMissingDB
	}

	rows, err := s.db.QueryContext(ctx, `SELECT video_id FROM video_progress ORDER BY video_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list records: %w", err)
	}
	defer rows.Close()

	var ids []progress.VideoID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan video id: %w", err)
		}
		ids = append(ids, progress.VideoID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list records: %w", err)
	}
	return ids, nil
}

// GetAggregate implements progress.Store.GetAggregate.
func (s *Store) GetAggregate(ctx context.Context) (progress.UserProgress, bool, error) {
	if s == nil || s.db == nil {
		return progress.UserProgress{}, false, errMissingDB
	}

	var (
		p         progress.UserProgress
		rawWeekly string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total_watch_time, completed_videos, average_progress, weekly_progress
		FROM user_progress
		WHERE id = 1
	`).Scan(&p.TotalWatchTime, &p.CompletedVideos, &p.AverageProgress, &rawWeekly)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.UserProgress{}, false, nil
	}
	if err != nil {
		return progress.UserProgress{}, false, fmt.Errorf("storage: get aggregate: %w", err)
	}
	if err := json.Unmarshal([]byte(rawWeekly), &p.WeeklyProgress); err != nil {
		return progress.UserProgress{}, false, fmt.Errorf("storage: decode weekly progress: %w", err)
	}
	return p, true, nil
}

// PutAggregate implements progress.Store.PutAggregate.
func (s *Store) PutAggregate(ctx context.Context, p progress.UserProgress) error {
	if s == nil || s.db == nil {
		return errMissingDB
	}

	weekly := p.WeeklyProgress
	if weekly == nil {
		weekly = []float64{}
	}
	raw, err := json.Marshal(weekly)
	if err != nil {
		return fmt.Errorf("storage: encode weekly progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_progress (id, total_watch_time, completed_videos, average_progress, weekly_progress)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_watch_time=excluded.total_watch_time,
			completed_videos=excluded.completed_videos,
			average_progress=excluded.average_progress,
			weekly_progress=excluded.weekly_progress
	`, p.TotalWatchTime, p.CompletedVideos, p.AverageProgress, string(raw))
	if err != nil {
		return fmt.Errorf("storage: put aggregate: %w", err)
	}
	return nil
}

// GetSettings implements progress.Store.GetSettings.
func (s *Store) GetSettings(ctx context.Context) (progress.Settings, bool, error) {
	if s == nil || s.db == nil {
		return progress.Settings{}, false, errMissingDB
	}

	var settings progress.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT theme, autoplay, playback_speed, notifications, subtitle
		FROM user_settings
		WHERE id = 1
	`).Scan(&settings.Theme, &settings.Autoplay, &settings.PlaybackSpeed, &settings.Notifications, &settings.Subtitle)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.Settings{}, false, nil
	}
	if err != nil {
		return progress.Settings{}, false, fmt.Errorf("storage: get settings: %w", err)
	}
	return settings, true, nil
}

// PutSettings implements progress.Store.PutSettings.
func (s *Store) PutSettings(ctx context.Context, settings progress.Settings) error {
	if s == nil || s.db == nil {
		return errMissingDB
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (id, theme, autoplay, playback_speed, notifications, subtitle)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			theme=excluded.theme,
			autoplay=excluded.autoplay,
			playback_speed=excluded.playback_speed,
			notifications=excluded.notifications,
			subtitle=excluded.subtitle
	`, settings.Theme, settings.Autoplay, settings.PlaybackSpeed, settings.Notifications, settings.Subtitle)
	if err != nil {
		return fmt.Errorf("storage: put settings: %w", err)
	}
	return nil
}
