package progress

import (
	"context"
	"log/slog"

	"watch-progress/internal/interval"
	"watch-progress/internal/platform/metrics"
)

// Repository is the best-effort persistence contract used by Service.
// Methods never fail: errors from the underlying Store are logged and the
// documented defaults are returned instead, so a broken store only costs
// durability, never the in-memory session.
type Repository interface {
	// LoadRecord returns the stored record for id. ok is false when the
	// record is absent, unreadable, or the store failed.
	LoadRecord(ctx context.Context, id VideoID) (rec Record, ok bool)

	// SaveRecord writes rec. Failures are logged.
	SaveRecord(ctx context.Context, rec Record)

	// DeleteRecord removes the record for id. Failures are logged.
	DeleteRecord(ctx context.Context, id VideoID)

	// ListVideoIDs returns every stored video id, or nil on failure.
	ListVideoIDs(ctx context.Context) []VideoID

	// LoadAggregate returns the stored summary or DefaultUserProgress.
	LoadAggregate(ctx context.Context) UserProgress

	// SaveAggregate writes p. Failures are logged.
	SaveAggregate(ctx context.Context, p UserProgress)

	// LoadSettings returns the stored settings or DefaultSettings.
	LoadSettings(ctx context.Context) Settings

	// SaveSettings writes s. Failures are logged.
	SaveSettings(ctx context.Context, s Settings)
}

// StoreRepository adapts a Store to Repository.
type StoreRepository struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewStoreRepository wraps store. m may be nil.
func NewStoreRepository(store Store, log *slog.Logger, m *metrics.Metrics) *StoreRepository {
	return &StoreRepository{store: store, log: log, metrics: m}
}

// NewInMemoryRepository returns a repository over a fresh InMemoryStore.
func NewInMemoryRepository(log *slog.Logger) *StoreRepository {
	return NewStoreRepository(NewInMemoryStore(), log, nil)
}

// LoadRecord implements Repository.LoadRecord.
func (r *StoreRepository) LoadRecord(ctx context.Context, id VideoID) (Record, bool) {
	rec, ok, err := r.store.GetRecord(ctx, id)
	if err != nil {
		r.fail("load_record", err, slog.String("video_id", string(id)))
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	rec.VideoID = id
	rec.Intervals = interval.Normalize(rec.Intervals)
	return rec, true
}

// SaveRecord implements Repository.SaveRecord.
func (r *StoreRepository) SaveRecord(ctx context.Context, rec Record) {
	if err := r.store.PutRecord(ctx, rec); err != nil {
		r.fail("save_record", err, slog.String("video_id", string(rec.VideoID)))
	}
}

// DeleteRecord implements Repository.DeleteRecord.
func (r *StoreRepository) DeleteRecord(ctx context.Context, id VideoID) {
	if err := r.store.DeleteRecord(ctx, id); err != nil {
		r.fail("delete_record", err, slog.String("video_id", string(id)))
	}
}

// ListVideoIDs implements Repository.ListVideoIDs.
func (r *StoreRepository) ListVideoIDs(ctx context.Context) []VideoID {
	ids, err := r.store.ListVideoIDs(ctx)
	if err != nil {
		r.fail("list_records", err)
		return nil
	}
	return ids
}

// LoadAggregate implements Repository.LoadAggregate.
func (r *StoreRepository) LoadAggregate(ctx context.Context) UserProgress {
	p, ok, err := r.store.GetAggregate(ctx)
	if err != nil {
		r.fail("load_aggregate", err)
		return DefaultUserProgress()
	}
	if !ok {
		return DefaultUserProgress()
	}
	p.WeeklyProgress = weekSlots(p.WeeklyProgress)
	return p
}

// SaveAggregate implements Repository.SaveAggregate.
func (r *StoreRepository) SaveAggregate(ctx context.Context, p UserProgress) {
	if err := r.store.PutAggregate(ctx, p); err != nil {
		r.fail("save_aggregate", err)
	}
}

// LoadSettings implements Repository.LoadSettings.
func (r *StoreRepository) LoadSettings(ctx context.Context) Settings {
	s, ok, err := r.store.GetSettings(ctx)
	if err != nil {
		r.fail("load_settings", err)
		return DefaultSettings()
	}
	if !ok {
		return DefaultSettings()
	}
	return s
}

// SaveSettings implements Repository.SaveSettings.
func (r *StoreRepository) SaveSettings(ctx context.Context, s Settings) {
	if err := r.store.PutSettings(ctx, s); err != nil {
		r.fail("save_settings", err)
	}
}

func (r *StoreRepository) fail(op string, err error, attrs ...any) {
	r.metrics.IncPersistenceFailures(op)
	attrs = append(attrs, slog.String("op", op), slog.String("error", err.Error()))
	r.log.Warn("persistence failed", attrs...)
}
