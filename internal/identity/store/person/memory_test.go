package person

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/identity/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type PersonStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestPersonStoreSuite(t *testing.T) {
	suite.Run(t, new(PersonStoreSuite))
}

func (s *PersonStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *PersonStoreSuite) newPerson(address string) *models.Person {
	p, err := models.NewPerson(id.NewPersonID(), address, time.Now())
	s.Require().NoError(err)
	return p
}

func (s *PersonStoreSuite) TestCreateAndLookup() {
	s.Run("finds by id and email", func() {
		p := s.newPerson("frank@example.com")
		s.Require().NoError(s.store.Create(s.ctx, p))

		byID, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Email, byID.Email)

		byEmail, err := s.store.FindByEmail(s.ctx, "frank@example.com")
		s.Require().NoError(err)
		s.Equal(p.ID, byEmail.ID)
	})

	s.Run("rejects duplicate email", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newPerson("gail@example.com")))
		err := s.store.Create(s.ctx, s.newPerson("GAIL@example.com"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown person is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewPersonID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PersonStoreSuite) TestMarkDeceased() {
	s.Run("second transition is rejected", func() {
		p := s.newPerson("hana@example.com")
		s.Require().NoError(s.store.Create(s.ctx, p))

		s.Require().NoError(s.store.MarkDeceased(s.ctx, p.ID, time.Now()))
		s.ErrorIs(s.store.MarkDeceased(s.ctx, p.ID, time.Now()), sentinel.ErrInvalidState)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(found.IsDeceased())
	})

	s.Run("exactly one concurrent caller wins", func() {
		p := s.newPerson("ivan@example.com")
		s.Require().NoError(s.store.Create(s.ctx, p))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.store.MarkDeceased(s.ctx, p.ID, time.Now()) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), wins.Load())
	})

	s.Run("missing person", func() {
		s.ErrorIs(s.store.MarkDeceased(s.ctx, id.NewPersonID(), time.Now()), sentinel.ErrNotFound)
	})
}
