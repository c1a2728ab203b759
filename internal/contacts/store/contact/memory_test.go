package contact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type ContactStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	owner id.PersonID
}

func TestContactStoreSuite(t *testing.T) {
	suite.Run(t, new(ContactStoreSuite))
}

func (s *ContactStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.owner = id.NewPersonID()
}

func (s *ContactStoreSuite) trusted(address string, status models.InvitationStatus) *models.Contact {
	now := time.Now()
	return &models.Contact{
		ID:               id.NewContactID(),
		OwnerPersonID:    s.owner,
		TargetEmail:      address,
		FullName:         "Someone",
		Phone:            "+15550100",
		ContactType:      models.ContactTypeTrusted,
		Role:             models.RoleExecutor,
		InvitationStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *ContactStoreSuite) TestMergeShadowsLegacy() {
	legacy := s.trusted("ana@example.com", models.InvitationPending)
	s.store.SeedLegacy(legacy)

	s.Run("legacy-only record is readable", func() {
		got, err := s.store.FindByID(s.ctx, legacy.ID)
		s.Require().NoError(err)
		s.Equal(models.SourceLegacy, got.Source)
	})

	s.Run("update writes forward and shadows the legacy row", func() {
		got, err := s.store.FindByID(s.ctx, legacy.ID)
		s.Require().NoError(err)
		got.ApplyDemotion(time.Now())
		s.Require().NoError(s.store.Update(s.ctx, got))

		reread, err := s.store.FindByID(s.ctx, legacy.ID)
		s.Require().NoError(err)
		s.Equal(models.SourceCurrent, reread.Source)
		s.Equal(models.ContactTypeRegular, reread.ContactType)

		trusted, err := s.store.ListTrustedByEmail(s.ctx, "ana@example.com")
		s.Require().NoError(err)
		s.Empty(trusted, "the shadowed legacy row must not leak through a filter")

		all, err := s.store.ListByOwner(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Len(all, 1)
	})
}

func (s *ContactStoreSuite) TestCreateAndDelete() {
	c := s.trusted("bo@example.com", models.InvitationPending)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrConflict)

	legacy := s.trusted("cy@example.com", models.InvitationPending)
	s.store.SeedLegacy(legacy)
	s.ErrorIs(s.store.Create(s.ctx, legacy), sentinel.ErrConflict)

	s.Run("delete removes both shapes", func() {
		s.Require().NoError(s.store.Update(s.ctx, legacy))
		s.Require().NoError(s.store.Delete(s.ctx, legacy.ID))
		_, err := s.store.FindByID(s.ctx, legacy.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("deleting an unknown record is not found", func() {
		s.ErrorIs(s.store.Delete(s.ctx, id.NewContactID()), sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		got.FullName = "mutated"
		again, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Someone", again.FullName)
	})
}

func (s *ContactStoreSuite) TestLinkIdentity() {
	personID := id.NewPersonID()

	s.Run("links and upgrades a pending trusted record", func() {
		c := s.trusted("di@example.com", models.InvitationPending)
		s.Require().NoError(s.store.Create(s.ctx, c))

		changed, err := s.store.LinkIdentity(s.ctx, c.ID, personID, time.Now())
		s.Require().NoError(err)
		s.True(changed)

		got, _ := s.store.FindByID(s.ctx, c.ID)
		s.Equal(personID, *got.LinkedPersonID)
		s.Equal(models.InvitationRegistered, got.InvitationStatus)

		changed, err = s.store.LinkIdentity(s.ctx, c.ID, personID, time.Now())
		s.Require().NoError(err)
		s.False(changed, "second link is a no-op")
	})

	s.Run("never replaces an existing link", func() {
		c := s.trusted("ed@example.com", models.InvitationRegistered)
		original := id.NewPersonID()
		c.LinkedPersonID = &original
		s.Require().NoError(s.store.Create(s.ctx, c))

		changed, err := s.store.LinkIdentity(s.ctx, c.ID, id.NewPersonID(), time.Now())
		s.Require().NoError(err)
		s.False(changed)
		got, _ := s.store.FindByID(s.ctx, c.ID)
		s.Equal(original, *got.LinkedPersonID)
	})

	s.Run("legacy record is written forward", func() {
		c := s.trusted("fay@example.com", models.InvitationPending)
		s.store.SeedLegacy(c)

		changed, err := s.store.LinkIdentity(s.ctx, c.ID, personID, time.Now())
		s.Require().NoError(err)
		s.True(changed)
		got, _ := s.store.FindByID(s.ctx, c.ID)
		s.Equal(models.SourceCurrent, got.Source)
	})
}

func (s *ContactStoreSuite) TestListPage() {
	other := id.NewPersonID()
	for range 5 {
		s.Require().NoError(s.store.Create(s.ctx, s.trusted("x@example.com", models.InvitationPending)))
	}
	foreign := s.trusted("y@example.com", models.InvitationPending)
	foreign.OwnerPersonID = other
	s.store.SeedLegacy(foreign)

	s.Run("pages through everything in id order", func() {
		var seen []id.ContactID
		var cursor id.ContactID
		for {
			page, err := s.store.ListPage(s.ctx, nil, cursor, 2)
			s.Require().NoError(err)
			if len(page) == 0 {
				break
			}
			for _, c := range page {
				seen = append(seen, c.ID)
			}
			cursor = page[len(page)-1].ID
		}
		s.Len(seen, 6)
		for i := 1; i < len(seen); i++ {
			s.True(idLess(seen[i-1], seen[i]))
		}
	})

	s.Run("owner scope", func() {
		page, err := s.store.ListPage(s.ctx, &other, id.ContactID{}, 10)
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal(foreign.ID, page[0].ID)
	})
}
