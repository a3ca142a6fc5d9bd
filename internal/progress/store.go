package progress

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence abstraction for progress data.
// Implementations can be in-memory, file-based, or remote. Absent data is
// reported with ok == false, never with an error.
type Store interface {
	GetRecord(ctx context.Context, id VideoID) (rec Record, ok bool, err error)
	PutRecord(ctx context.Context, rec Record) error
	DeleteRecord(ctx context.Context, id VideoID) error
	ListVideoIDs(ctx context.Context) ([]VideoID, error)

	GetAggregate(ctx context.Context) (p UserProgress, ok bool, err error)
	PutAggregate(ctx context.Context, p UserProgress) error

	GetSettings(ctx context.Context) (s Settings, ok bool, err error)
	PutSettings(ctx context.Context, s Settings) error
}

// InMemoryStore is a concurrency-safe in-memory implementation of Store.
// Values are copied on the way in and out.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[VideoID]Record
	aggregate *UserProgress
	settings  *Settings
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[VideoID]Record)}
}

// GetRecord implements Store.GetRecord.
func (s *InMemoryStore) GetRecord(_ context.Context, id VideoID) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// PutRecord implements Store.PutRecord.
func (s *InMemoryStore) PutRecord(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.VideoID] = rec.Clone()
	return nil
}

// DeleteRecord implements Store.DeleteRecord.
func (s *InMemoryStore) DeleteRecord(_ context.Context, id VideoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// ListVideoIDs implements Store.ListVideoIDs. IDs are sorted.
func (s *InMemoryStore) ListVideoIDs(_ context.Context) ([]VideoID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]VideoID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetAggregate implements Store.GetAggregate.
func (s *InMemoryStore) GetAggregate(_ context.Context) (UserProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aggregate == nil {
		return UserProgress{}, false, nil
	}
	out := *s.aggregate
	out.WeeklyProgress = append([]float64(nil), s.aggregate.WeeklyProgress...)
	return out, true, nil
}

// PutAggregate implements Store.PutAggregate.
func (s *InMemoryStore) PutAggregate(_ context.Context, p UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.WeeklyProgress = append([]float64(nil), p.WeeklyProgress...)
	s.aggregate = &p
	return nil
}

// GetSettings implements Store.GetSettings.
func (s *InMemoryStore) GetSettings(_ context.Context) (Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return Settings{}, false, nil
	}
	return *s.settings, true, nil
}

// PutSettings implements Store.PutSettings.
func (s *InMemoryStore) PutSettings(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}
