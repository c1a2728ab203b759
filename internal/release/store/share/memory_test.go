package share

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type ShareStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	owner id.PersonID
}

func TestShareStoreSuite(t *testing.T) {
	suite.Run(t, new(ShareStoreSuite))
}

func (s *ShareStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.owner = id.NewPersonID()
}

func (s *ShareStoreSuite) TestCreateIfAbsent() {
	pair := models.Pair{ContentID: id.NewContentID(), Recipient: "hana@example.com"}

	s.Run("first write creates", func() {
		created, err := s.store.CreateIfAbsent(s.ctx, models.NewShare(pair, s.owner, time.Now()))
		s.Require().NoError(err)
		s.True(created)
	})

	s.Run("same pair is not written twice", func() {
		created, err := s.store.CreateIfAbsent(s.ctx, models.NewShare(pair, s.owner, time.Now()))
		s.Require().NoError(err)
		s.False(created)
	})

	s.Run("existing pairs are reported by content", func() {
		other := id.NewContentID()
		pairs, err := s.store.ExistingPairs(s.ctx, []id.ContentID{pair.ContentID, other})
		s.Require().NoError(err)
		s.Len(pairs, 1)
		s.Contains(pairs, pair)
	})
}

func (s *ShareStoreSuite) TestMarkViewed() {
	share := models.NewShare(models.Pair{ContentID: id.NewContentID(), Recipient: "ivo@example.com"}, s.owner, time.Now())
	_, err := s.store.CreateIfAbsent(s.ctx, share)
	s.Require().NoError(err)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.Run("wrong recipient sees not found", func() {
		_, err := s.store.MarkViewed(s.ctx, share.ID, "eve@example.com", first)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("first view is recorded", func() {
		got, err := s.store.MarkViewed(s.ctx, share.ID, "ivo@example.com", first)
		s.Require().NoError(err)
		s.Require().NotNil(got.ViewedAt)
		s.True(first.Equal(*got.ViewedAt))
	})

	s.Run("second view keeps the first timestamp", func() {
		got, err := s.store.MarkViewed(s.ctx, share.ID, "ivo@example.com", first.Add(time.Hour))
		s.Require().NoError(err)
		s.True(first.Equal(*got.ViewedAt))
	})

	s.Run("unknown share", func() {
		_, err := s.store.MarkViewed(s.ctx, id.NewShareID(), "ivo@example.com", first)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ShareStoreSuite) TestListForRecipientNewestFirst() {
	base := time.Now()
	older := models.NewShare(models.Pair{ContentID: id.NewContentID(), Recipient: "jo@example.com"}, s.owner, base)
	newer := models.NewShare(models.Pair{ContentID: id.NewContentID(), Recipient: "jo@example.com"}, s.owner, base.Add(time.Minute))
	foreign := models.NewShare(models.Pair{ContentID: id.NewContentID(), Recipient: "kai@example.com"}, s.owner, base)
	for _, sh := range []*models.Share{older, newer, foreign} {
		_, err := s.store.CreateIfAbsent(s.ctx, sh)
		s.Require().NoError(err)
	}

	got, err := s.store.ListForRecipient(s.ctx, "jo@example.com")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Equal(older.ID, got[1].ID)
}
