//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/trust/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.redis.Reset(s.T())
}

func (s *RedisCacheSuite) TestTrustorsRoundTripWithTTL() {
	ctx := context.Background()
	trustors := []models.Trustor{{
		OwnerPersonID:    id.NewPersonID(),
		ContactID:        id.NewContactID(),
		Role:             contactmodels.RoleGuardian,
		InvitationStatus: contactmodels.InvitationConfirmed,
		Source:           contactmodels.SourceCurrent,
	}}

	s.Require().NoError(s.cache.Set(ctx, "kai@example.com", trustors))
	got, err := s.cache.Get(ctx, "kai@example.com")
	s.Require().NoError(err)
	s.Equal(trustors, got)

	ttl, err := s.redis.Client.TTL(ctx, trustorsKeyPrefix+"kai@example.com").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)

	s.Require().NoError(s.cache.Delete(ctx, "kai@example.com"))
	_, err = s.cache.Get(ctx, "kai@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestEmptyListIsCached() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "nobody@example.com", nil))
	got, err := s.cache.Get(ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.Empty(got)
	s.NotNil(got)
}
