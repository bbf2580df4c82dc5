package access

import (
	"context"
	"sync"

	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
)

type pairKey struct {
	patient  id.Principal
	accessor id.Principal
}

type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[pairKey]Grant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[pairKey]Grant)}
}

func (s *InMemoryStore) Save(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[pairKey{grant.Patient, grant.Accessor}] = grant
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, patient, accessor id.Principal) (Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[pairKey{patient, accessor}]
	if !ok {
		return Grant{}, sentinel.ErrNotFound
	}
	return grant, nil
}
