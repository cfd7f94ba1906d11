package memory

import (
	"context"
	"sync"
	"time"

	"github.com/facegate/server/internal/facegate/store"
)

// AccessLogStore is an in-memory append-only audit log for tests and dev
// environments.
type AccessLogStore struct {
	mu      sync.Mutex
	records []store.AccessLogRecord
}

func NewAccessLogStore() *AccessLogStore {
	return &AccessLogStore{}
}

func (s *AccessLogStore) Append(_ context.Context, rec store.AccessLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *AccessLogStore) HistoryForUser(_ context.Context, userID int64, limit int) ([]store.AccessLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.AccessLogRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if rec.UserID != nil && *rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *AccessLogStore) Recent(_ context.Context, limit int) ([]store.AccessLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.AccessLogRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *AccessLogStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, rec := range s.records {
		if rec.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// Records returns a copy of all appended records.  Test-only helper.
func (s *AccessLogStore) Records() []store.AccessLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.AccessLogRecord, len(s.records))
	copy(out, s.records)
	return out
}
