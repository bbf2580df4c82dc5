package record

import (
	"context"
	"sync"
	"time"

	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]Record
	byOwner map[id.Principal][]id.RecordID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.RecordID]Record),
		byOwner: make(map[id.Principal][]id.RecordID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec
	s.byOwner[rec.Owner] = append(s.byOwner[rec.Owner], rec.ID)
	return nil
}

func (s *InMemoryStore) UpdateReference(_ context.Context, recordID id.RecordID, dataReference string, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.records[recordID]
	if !exists {
		return sentinel.ErrNotFound
	}
	rec.DataReference = dataReference
	rec.LastModified = modified
	s.records[recordID] = rec
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, recordID id.RecordID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.records[recordID]
	if !exists {
		return Record{}, sentinel.ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.Principal) ([]id.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.RecordID{}, s.byOwner[owner]...), nil
}
