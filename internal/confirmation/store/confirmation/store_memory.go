package confirmation

import (
	"context"
	"sync"

	"heirloom/internal/confirmation/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory keeps one confirmation per target.
type InMemory struct {
	mu       sync.RWMutex
	byTarget map[id.PersonID]*models.Confirmation
}

func NewInMemory() *InMemory {
	return &InMemory{byTarget: make(map[id.PersonID]*models.Confirmation)}
}

// Append returns sentinel.ErrConflict when the target already has one.
func (s *InMemory) Append(_ context.Context, c *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byTarget[c.TargetPersonID]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.byTarget[c.TargetPersonID] = &cp
	return nil
}

func (s *InMemory) FindByTarget(_ context.Context, target id.PersonID) (*models.Confirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byTarget[target]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
