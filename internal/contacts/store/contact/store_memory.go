package contact

import (
	"context"
	"sync"
	"time"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory keeps both physical shapes as separate maps so the merge rules
// behave the same as the postgres store.
type InMemory struct {
	mu      sync.RWMutex
	current map[id.ContactID]*models.Contact
	legacy  map[id.ContactID]*models.Contact
}

func NewInMemory() *InMemory {
	return &InMemory{
		current: make(map[id.ContactID]*models.Contact),
		legacy:  make(map[id.ContactID]*models.Contact),
	}
}

// SeedLegacy inserts a record into the legacy shape. Used by tests and local
// fixtures; the service never writes legacy records.
func (s *InMemory) SeedLegacy(c *models.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(c)
	cp.Source = models.SourceLegacy
	s.legacy[c.ID] = cp
}

func (s *InMemory) Create(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[c.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.legacy[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.current[c.ID] = currentCopy(c)
	return nil
}

// Update writes the record into the current shape. A legacy-only record is
// written forward and from then on shadows its legacy row.
func (s *InMemory) Update(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookup(c.ID) == nil {
		return sentinel.ErrNotFound
	}
	s.current[c.ID] = currentCopy(c)
	return nil
}

func (s *InMemory) Delete(_ context.Context, contactID id.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inCurrent := s.current[contactID]
	_, inLegacy := s.legacy[contactID]
	if !inCurrent && !inLegacy {
		return sentinel.ErrNotFound
	}
	delete(s.current, contactID)
	delete(s.legacy, contactID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.lookup(contactID)
	if c == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner id.PersonID) ([]*models.Contact, error) {
	return s.filter(func(c *models.Contact) bool { return c.OwnerPersonID == owner }), nil
}

// ListTrustedByEmail expects a normalized address.
func (s *InMemory) ListTrustedByEmail(_ context.Context, address string) ([]*models.Contact, error) {
	return s.filter(func(c *models.Contact) bool {
		return c.IsTrusted() && c.TargetEmail == address
	}), nil
}

// ListPage returns up to limit merged records with IDs strictly after the
// cursor, optionally restricted to one owner.
func (s *InMemory) ListPage(_ context.Context, owner *id.PersonID, after id.ContactID, limit int) ([]*models.Contact, error) {
	page := s.filter(func(c *models.Contact) bool {
		if owner != nil && c.OwnerPersonID != *owner {
			return false
		}
		return idLess(after, c.ID)
	})
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

// LinkIdentity sets the linked person when none is set and upgrades a pending
// trusted record. Reports whether anything changed.
func (s *InMemory) LinkIdentity(_ context.Context, contactID id.ContactID, personID id.PersonID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.lookup(contactID)
	if c == nil {
		return false, sentinel.ErrNotFound
	}
	updated := currentCopy(c)
	if updated.IsLinked() && *updated.LinkedPersonID != personID {
		// Linked to someone else already; only the status may still drift.
		personID = *updated.LinkedPersonID
	}
	if !updated.ApplyLink(personID, now) {
		return false, nil
	}
	s.current[contactID] = updated
	return true, nil
}

func (s *InMemory) lookup(contactID id.ContactID) *models.Contact {
	if c, ok := s.current[contactID]; ok {
		return c
	}
	if c, ok := s.legacy[contactID]; ok {
		return c
	}
	return nil
}

// filter merges before applying keep so a shadowed legacy row can never
// match in place of its current version.
func (s *InMemory) filter(keep func(*models.Contact) bool) []*models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := make([]*models.Contact, 0, len(s.current))
	for _, c := range s.current {
		current = append(current, c)
	}
	legacy := make([]*models.Contact, 0, len(s.legacy))
	for _, c := range s.legacy {
		legacy = append(legacy, c)
	}
	var out []*models.Contact
	for _, c := range Merge(current, legacy) {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

func clone(c *models.Contact) *models.Contact {
	cp := *c
	if c.LinkedPersonID != nil {
		linked := *c.LinkedPersonID
		cp.LinkedPersonID = &linked
	}
	return &cp
}

func currentCopy(c *models.Contact) *models.Contact {
	cp := clone(c)
	cp.Source = models.SourceCurrent
	return cp
}
