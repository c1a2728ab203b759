package memory

import (
	"context"
	"sync"

	id "heirloom/pkg/domain"
	audit "heirloom/pkg/platform/audit"
)

// InMemoryStore keeps events per person; used in tests and when no database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.PersonID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.PersonID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PersonID] = append(s.events[event.PersonID], event)
	return nil
}

func (s *InMemoryStore) ListByPerson(_ context.Context, personID id.PersonID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[personID]...), nil
}

// CountAction counts events with the given action across all persons.
func (s *InMemoryStore) CountAction(action audit.AuditEvent) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, events := range s.events {
		for _, e := range events {
			if e.Action == string(action) {
				n++
			}
		}
	}
	return n
}
