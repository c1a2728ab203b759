// Package memory provides in-process content catalog and sharer adapters for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
)

type Catalog struct {
	mu        sync.RWMutex
	contents  map[id.PersonID][]models.Content
	general   map[id.PersonID][]string
	assigned  map[id.ContactID][]string
	listError error
}

func NewCatalog() *Catalog {
	return &Catalog{
		contents: make(map[id.PersonID][]models.Content),
		general:  make(map[id.PersonID][]string),
		assigned: make(map[id.ContactID][]string),
	}
}

// AddContent registers a private item; contactID may be nil for general content.
func (c *Catalog) AddContent(owner id.PersonID, title string, contactID *id.ContactID) models.Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	content := models.Content{ID: id.NewContentID(), OwnerPersonID: owner, Title: title, AssignedContactID: contactID}
	c.contents[owner] = append(c.contents[owner], content)
	return content
}

func (c *Catalog) SetGeneralRecipients(owner id.PersonID, recipients ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.general[owner] = recipients
}

func (c *Catalog) SetAssignedRecipients(contactID id.ContactID, recipients ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned[contactID] = recipients
}

// FailListing makes ListPrivateContent return err until cleared with nil.
func (c *Catalog) FailListing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listError = err
}

func (c *Catalog) ListPrivateContent(_ context.Context, owner id.PersonID) ([]models.Content, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listError != nil {
		return nil, c.listError
	}
	return append([]models.Content(nil), c.contents[owner]...), nil
}

func (c *Catalog) GeneralRecipients(_ context.Context, owner id.PersonID) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.general[owner]...), nil
}

func (c *Catalog) AssignedRecipients(_ context.Context, _ id.PersonID, contactID id.ContactID) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.assigned[contactID]...), nil
}

// Sharer records grants and can be told to fail specific recipients.
type Sharer struct {
	mu       sync.Mutex
	granted  map[models.Pair]int
	failing  map[string]int
	inFlight int
	peak     int
	block    chan struct{}
}

func NewSharer() *Sharer {
	return &Sharer{
		granted: make(map[models.Pair]int),
		failing: make(map[string]int),
	}
}

// FailRecipient makes the next times calls for recipient fail.
func (s *Sharer) FailRecipient(recipient string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[recipient] = times
}

// Block holds every Share call until the returned func is called.
func (s *Sharer) Block() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.block = ch
	return func() { close(ch) }
}

func (s *Sharer) Share(ctx context.Context, contentID id.ContentID, recipient string) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	block := s.block
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.failing[recipient]; n > 0 {
		s.failing[recipient] = n - 1
		return fmt.Errorf("share to %s refused", recipient)
	}
	s.granted[models.Pair{ContentID: contentID, Recipient: recipient}]++
	return nil
}

// Grants returns how many times pair was shared.
func (s *Sharer) Grants(pair models.Pair) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted[pair]
}

func (s *Sharer) TotalGrants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.granted {
		total += n
	}
	return total
}

// PeakConcurrency is the highest number of overlapping Share calls seen.
func (s *Sharer) PeakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
