package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process Store for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now, ttl = now.UTC(), ttlOrDefault(ttl)
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok && !existing.expired(now) {
		return classify(existing, fingerprint)
	}
	record := pendingRecord(key, fingerprint, now, ttl)
	s.records[id] = record
	return Reservation{State: ReservationStateNew, Record: record}, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now, ttl = now.UTC(), ttlOrDefault(ttl)
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	switch {
	case !ok:
		record = pendingRecord(key, fingerprint, now, ttl)
	case record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	}
	s.records[id] = record.complete(resp, now, ttl)
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, record := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if record.expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Release drops the reservation held by fingerprint so the caller can retry.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[id]; ok && record.Fingerprint == fingerprint {
		delete(s.records, id)
	}
	return nil
}
