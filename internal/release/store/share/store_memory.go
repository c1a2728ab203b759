// Package share persists release shares: one row per (content, recipient),
// written after the external share succeeded and only ever updated to record
// the first view.
package share

import (
	"context"
	"sort"
	"sync"
	"time"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.RWMutex
	byID   map[id.ShareID]*models.Share
	byPair map[models.Pair]id.ShareID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[id.ShareID]*models.Share),
		byPair: make(map[models.Pair]id.ShareID),
	}
}

// CreateIfAbsent stores s unless its pair already exists. created reports
// whether this call wrote the row.
func (s *InMemory) CreateIfAbsent(_ context.Context, share *models.Share) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[share.Pair()]; exists {
		return false, nil
	}
	cp := *share
	s.byID[share.ID] = &cp
	s.byPair[share.Pair()] = share.ID
	return true, nil
}

func (s *InMemory) ExistingPairs(_ context.Context, contentIDs []id.ContentID) (map[models.Pair]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[id.ContentID]struct{}, len(contentIDs))
	for _, c := range contentIDs {
		wanted[c] = struct{}{}
	}
	out := make(map[models.Pair]struct{})
	for pair := range s.byPair {
		if _, ok := wanted[pair.ContentID]; ok {
			out[pair] = struct{}{}
		}
	}
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, shareID id.ShareID) (*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.byID[shareID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(share), nil
}

// MarkViewed sets ViewedAt the first time the recipient opens the share.
// A share addressed to someone else reports sentinel.ErrNotFound.
func (s *InMemory) MarkViewed(_ context.Context, shareID id.ShareID, recipient string, now time.Time) (*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.byID[shareID]
	if !ok || share.RecipientIdentity != recipient {
		return nil, sentinel.ErrNotFound
	}
	if share.ViewedAt == nil {
		viewed := now
		share.ViewedAt = &viewed
	}
	return clone(share), nil
}

// ListForRecipient returns newest releases first.
func (s *InMemory) ListForRecipient(_ context.Context, recipient string) ([]*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Share
	for _, share := range s.byID {
		if share.RecipientIdentity == recipient {
			out = append(out, clone(share))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReleasedAt.Equal(out[j].ReleasedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].ReleasedAt.After(out[j].ReleasedAt)
	})
	return out, nil
}

func clone(s *models.Share) *models.Share {
	cp := *s
	if s.ViewedAt != nil {
		v := *s.ViewedAt
		cp.ViewedAt = &v
	}
	return &cp
}
