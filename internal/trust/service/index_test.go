package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/contacts/store/contact"
	"heirloom/internal/trust/metrics"
	"heirloom/internal/trust/models"
	"heirloom/internal/trust/store"
	id "heirloom/pkg/domain"
)

type IndexSuite struct {
	suite.Suite
	ctx      context.Context
	contacts *contact.InMemory
	cache    *store.InMemoryCache
	registry *prometheus.Registry
	index    *Index
	owner    id.PersonID
}

func TestIndexSuite(t *testing.T) {
	suite.Run(t, new(IndexSuite))
}

func (s *IndexSuite) SetupTest() {
	s.ctx = context.Background()
	s.contacts = contact.NewInMemory()
	s.cache = store.NewInMemoryCache(time.Minute)
	s.registry = prometheus.NewRegistry()
	s.index = New(s.contacts, s.cache, WithMetrics(metrics.New(s.registry)))
	s.owner = id.NewPersonID()
}

func (s *IndexSuite) addTrusted(address string, role contactmodels.Role) *contactmodels.Contact {
	c := &contactmodels.Contact{
		ID:               id.NewContactID(),
		OwnerPersonID:    s.owner,
		TargetEmail:      address,
		FullName:         "Trusted",
		Phone:            "+1555",
		ContactType:      contactmodels.ContactTypeTrusted,
		Role:             role,
		InvitationStatus: contactmodels.InvitationRegistered,
		CreatedAt:        time.Now(),
	}
	s.Require().NoError(s.contacts.Create(s.ctx, c))
	return c
}

func (s *IndexSuite) TestTrustorsOf() {
	s.addTrusted("amy@example.com", contactmodels.RoleExecutor)

	s.Run("normalizes the lookup email", func() {
		got, err := s.index.TrustorsOf(s.ctx, "  AMY@example.com")
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(s.owner, got[0].OwnerPersonID)
	})

	s.Run("second lookup is served from cache", func() {
		_, err := s.index.TrustorsOf(s.ctx, "amy@example.com")
		s.Require().NoError(err)
		expected := `
# HELP heirloom_trust_index_lookups_total Reverse trust index lookups by cache outcome
# TYPE heirloom_trust_index_lookups_total counter
heirloom_trust_index_lookups_total{outcome="hit"} 1
heirloom_trust_index_lookups_total{outcome="miss"} 1
`
		s.NoError(testutil.GatherAndCompare(s.registry, strings.NewReader(expected), "heirloom_trust_index_lookups_total"))
	})
}

func (s *IndexSuite) TestInvalidateDropsStaleEntry() {
	c := s.addTrusted("ben@example.com", contactmodels.RoleGuardian)
	_, err := s.index.TrustorsOf(s.ctx, "ben@example.com")
	s.Require().NoError(err)

	c.ApplyDemotion(time.Now())
	s.Require().NoError(s.contacts.Update(s.ctx, c))

	stale, err := s.index.TrustorsOf(s.ctx, "ben@example.com")
	s.Require().NoError(err)
	s.Len(stale, 1, "cache still holds the old entry")

	s.Require().NoError(s.index.Invalidate(s.ctx, "ben@example.com"))
	fresh, err := s.index.TrustorsOf(s.ctx, "ben@example.com")
	s.Require().NoError(err)
	s.Empty(fresh)
}

func (s *IndexSuite) TestRefreshBypassesCache() {
	c := s.addTrusted("cal@example.com", contactmodels.RoleGuardian)
	_, err := s.index.TrustorsOf(s.ctx, "cal@example.com")
	s.Require().NoError(err)

	c.ApplyDemotion(time.Now())
	s.Require().NoError(s.contacts.Update(s.ctx, c))

	got, err := s.index.Refresh(s.ctx, "cal@example.com")
	s.Require().NoError(err)
	s.Empty(got)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]models.Trustor, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Set(context.Context, string, []models.Trustor) error {
	return errors.New("connection refused")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("connection refused") }

func (s *IndexSuite) TestCacheOutageFallsBackToSource() {
	s.addTrusted("dee@example.com", contactmodels.RoleExecutor)
	index := New(s.contacts, failingCache{})

	got, err := index.TrustorsOf(s.ctx, "dee@example.com")
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Error(index.Invalidate(s.ctx, "dee@example.com"))
}
