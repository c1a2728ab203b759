package person

import (
	"context"
	"sync"
	"time"

	"heirloom/internal/identity/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory is a map-backed person store with a secondary email index.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.PersonID]*models.Person
	byEmail map[string]id.PersonID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.PersonID]*models.Person),
		byEmail: make(map[string]id.PersonID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[p.Email]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.byID[p.ID] = &cp
	s.byEmail[p.Email] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// FindByEmail expects a normalized address.
func (s *InMemory) FindByEmail(_ context.Context, address string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personID, ok := s.byEmail[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[personID]
	return &cp, nil
}

// MarkDeceased performs the active → deceased compare-and-swap.
// Returns sentinel.ErrInvalidState when the person is no longer active.
func (s *InMemory) MarkDeceased(_ context.Context, personID id.PersonID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[personID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.CanMarkDeceased() != nil {
		return sentinel.ErrInvalidState
	}
	p.ApplyDeceased(now)
	return nil
}
