package progress

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"watch-progress/internal/platform/metrics"
)

// Publisher receives an Event after every persisted change.
type Publisher interface {
	PublishProgress(ctx context.Context, ev Event) error
}

// ServiceConfig carries the optional collaborators of a Service.
type ServiceConfig struct {
	Policy    SkipPolicy
	Log       *slog.Logger
	Metrics   *metrics.Metrics // may be nil
	Publisher Publisher        // may be nil
	Now       func() time.Time // defaults to time.Now
}

// session pairs a tracker with the lock that serialises its events.
// A retired session has been replaced or released; callers holding it must
// look the id up again.
type session struct {
	mu      sync.Mutex
	tracker *Tracker
	retired bool
}

// Service owns one Tracker per open video and persists every change through
// a Repository. Sessions for different videos are independent.
type Service struct {
	repo      Repository
	policy    SkipPolicy
	log       *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[VideoID]*session
}

// NewService returns a Service that stores progress through repo.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:      repo,
		policy:    cfg.Policy,
		log:       cfg.Log,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		now:       cfg.Now,
		sessions:  make(map[VideoID]*session),
	}
}

// Open starts (or restarts) a tracking session for id. Stored progress is
// loaded; a missing or unreadable record starts from zero.
func (s *Service) Open(ctx context.Context, id VideoID, duration float64) (Snapshot, error) {
	if id == "" {
		return Snapshot{}, ErrInvalidVideoID
	}
	if duration < 0 {
		return Snapshot{}, ErrInvalidDuration
	}

	snap, restored := s.install(ctx, id, duration)

	s.log.Info("session opened",
		slog.String("video_id", string(id)),
		slog.Float64("duration", duration),
		slog.Bool("restored", restored),
		slog.Int("progress", snap.ProgressPercentage))
	return snap, nil
}

// install loads the stored record for id and swaps a fresh session in. The
// previous session stays locked until it is retired so none of its
// in-flight events can save after the load.
func (s *Service) install(ctx context.Context, id VideoID, duration float64) (Snapshot, bool) {
	for {
		old, _ := s.lock(id)

		rec, ok := s.repo.LoadRecord(ctx, id)
		var tr *Tracker
		if ok {
			tr = Restore(rec, duration, s.policy)
		} else {
			tr = NewTracker(id, duration, s.policy)
		}
		tr.now = s.now

		s.mu.Lock()
		if s.sessions[id] != old {
			// Raced with another Open or Release.
			s.mu.Unlock()
			if old != nil {
				old.mu.Unlock()
			}
			continue
		}
		sess := &session{tracker: tr}
		sess.mu.Lock()
		s.sessions[id] = sess
		n := len(s.sessions)
		s.mu.Unlock()
		s.metrics.SetActiveSessions(n)

		if old != nil {
			old.retired = true
			old.mu.Unlock()
		}
		snap := tr.Snapshot()
		sess.mu.Unlock()
		return snap, ok
	}
}

// Release drops the in-memory session for id. An open span is not
// committed.
func (s *Service) Release(id VideoID) {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(n)

	if sess != nil {
		sess.mu.Lock()
		sess.retired = true
		sess.mu.Unlock()
	}
}

// ActiveSessions returns the number of open sessions.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sample feeds a periodic playback position into the session for id.
func (s *Service) Sample(ctx context.Context, id VideoID, currentTime float64) (Snapshot, error) {
	return s.apply(ctx, id, func(t *Tracker) Commit { return t.IngestSample(currentTime) })
}

// Close ends continuous playback at endTime (pause or seek start).
func (s *Service) Close(ctx context.Context, id VideoID, endTime float64) (Snapshot, error) {
	return s.apply(ctx, id, func(t *Tracker) Commit { return t.CloseSpan(endTime) })
}

// Seek closes the span at from and moves the resume point to to.
func (s *Service) Seek(ctx context.Context, id VideoID, from, to float64) (Snapshot, error) {
	return s.apply(ctx, id, func(t *Tracker) Commit { return t.Seek(from, to) })
}

// End records that playback reached the end of the video.
func (s *Service) End(ctx context.Context, id VideoID) (Snapshot, error) {
	return s.apply(ctx, id, func(t *Tracker) Commit { return t.End() })
}

// Reset clears the session's progress and deletes the stored record.
func (s *Service) Reset(ctx context.Context, id VideoID) (Snapshot, error) {
	sess, err := s.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.mu.Unlock()

	c := sess.tracker.Reset()
	s.repo.DeleteRecord(ctx, id)
	s.metrics.ObserveSample(string(c.Outcome))
	s.publish(ctx, c)
	s.log.Info("progress reset", slog.String("video_id", string(id)))
	return sess.tracker.Snapshot(), nil
}

// Snapshot returns the state of the open session for id.
func (s *Service) Snapshot(id VideoID) (Snapshot, error) {
	sess, err := s.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.mu.Unlock()
	return sess.tracker.Snapshot(), nil
}

// Progress returns the open session's snapshot, falling back to the stored
// record and finally to empty progress.
func (s *Service) Progress(ctx context.Context, id VideoID) (Snapshot, error) {
	if id == "" {
		return Snapshot{}, ErrInvalidVideoID
	}
	if snap, err := s.Snapshot(id); err == nil {
		return snap, nil
	}
	rec, ok := s.repo.LoadRecord(ctx, id)
	if !ok {
		rec = Record{VideoID: id}
	}
	return snapshotOf(rec, StateIdle), nil
}

// Aggregate returns the stored summary without recomputing it.
func (s *Service) Aggregate(ctx context.Context) UserProgress {
	return s.repo.LoadAggregate(ctx)
}

// RecomputeAggregate folds the stored records of ids (every stored video
// when ids is empty) into a new summary and saves it. Missing records are
// skipped. Each record is read once; concurrent sessions may be seen at an
// earlier state.
func (s *Service) RecomputeAggregate(ctx context.Context, ids []VideoID) UserProgress {
	if len(ids) == 0 {
		ids = s.repo.ListVideoIDs(ctx)
	}

	seen := make(map[VideoID]struct{}, len(ids))
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := s.repo.LoadRecord(ctx, id); ok {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].VideoID < records[j].VideoID })

	summary := Fold(records, s.repo.LoadAggregate(ctx), s.now())
	s.repo.SaveAggregate(ctx, summary)
	s.log.Debug("aggregate recomputed",
		slog.Int("videos", len(records)),
		slog.Float64("total_watch_time", summary.TotalWatchTime))
	return summary
}

// Settings returns the stored settings or the defaults.
func (s *Service) Settings(ctx context.Context) Settings {
	return s.repo.LoadSettings(ctx)
}

// SaveSettings validates and stores settings.
func (s *Service) SaveSettings(ctx context.Context, settings Settings) (Settings, error) {
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	s.repo.SaveSettings(ctx, settings)
	return settings, nil
}

func (s *Service) lookup(id VideoID) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// lock returns the live session for id with its mutex held.
func (s *Service) lock(id VideoID) (*session, error) {
	for {
		sess := s.lookup(id)
		if sess == nil {
			return nil, ErrSessionNotFound
		}
		sess.mu.Lock()
		if !sess.retired {
			return sess, nil
		}
		sess.mu.Unlock()
	}
}

// apply runs fn against the session's tracker and persists the result when
// it changed anything.
func (s *Service) apply(ctx context.Context, id VideoID, fn func(*Tracker) Commit) (Snapshot, error) {
	sess, err := s.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.mu.Unlock()

	c := fn(sess.tracker)
	s.observe(id, c)
	if c.Dirty {
		s.repo.SaveRecord(ctx, c.Record)
		s.publish(ctx, c)
	}
	return sess.tracker.Snapshot(), nil
}

func (s *Service) observe(id VideoID, c Commit) {
	s.metrics.ObserveSample(string(c.Outcome))
	switch c.Outcome {
	case OutcomeSkipped:
		s.metrics.IncSkips()
		s.log.Debug("skip detected",
			slog.String("video_id", string(id)),
			slog.Float64("position", c.Record.LastPosition))
	case OutcomeContinuous, OutcomeClosed:
		s.metrics.IncIntervalsCommitted()
	}
}

func (s *Service) publish(ctx context.Context, c Commit) {
	if s.publisher == nil {
		return
	}
	ev := Event{
		EventID:            uuid.NewString(),
		VideoID:            c.Record.VideoID,
		Outcome:            c.Outcome,
		WatchedSeconds:     c.Record.WatchedSeconds(),
		ProgressPercentage: c.Record.Percentage(),
		LastPosition:       c.Record.LastPosition,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.publisher.PublishProgress(ctx, ev); err != nil {
		s.log.Warn("publish progress failed",
			slog.String("video_id", string(ev.VideoID)),
			slog.String("error", err.Error()))
	}
}
