package correlate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for single-instance deployments
// and tests. Expiry is lazy: entries past their deadline are treated as
// absent and dropped on access. Deleting under the same lock that reads
// gives GetAndDelete the required atomicity.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
}

type memoryEntry struct {
	rec      Record
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RequestID] = memoryEntry{
		rec:      rec,
		deadline: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) GetAndDelete(_ context.Context, requestID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[requestID]
	if !ok {
		return Record{}, false, nil
	}
	delete(s.records, requestID)
	if time.Now().After(entry.deadline) {
		return Record{}, false, nil
	}
	return entry.rec, true, nil
}

func (s *MemoryStore) Exists(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[requestID]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.deadline) {
		delete(s.records, requestID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, requestID)
	return nil
}
