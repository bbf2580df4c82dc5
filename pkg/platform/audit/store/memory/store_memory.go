package memory

import (
	"context"
	"sync"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
)

// InMemoryStore keeps the full trail in arrival order plus a per-patient
// index. Append cannot fail, which is what makes the in-memory backend's
// mutations all-or-nothing without a transaction.
type InMemoryStore struct {
	mu        sync.RWMutex
	nextSeq   uint64
	events    []audit.Event
	byPatient map[id.Principal][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byPatient: make(map[id.Principal][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	event.Seq = s.nextSeq
	s.byPatient[event.Patient] = append(s.byPatient[event.Patient], len(s.events))
	s.events = append(s.events, event)
	return event, nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patient id.Principal) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byPatient[patient]
	out := make([]audit.Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.events[start:]...), nil
}
