package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	confirmationmodels "heirloom/internal/confirmation/models"
	contactmodels "heirloom/internal/contacts/models"
	"heirloom/internal/contacts/store/contact"
	"heirloom/internal/platform/logger"
	"heirloom/internal/release/adapters/memory"
	"heirloom/internal/release/metrics"
	"heirloom/internal/release/models"
	"heirloom/internal/release/store/share"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/audit/publisher"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	"heirloom/pkg/platform/sentinel"
)

type confirmedTargets struct {
	mu      sync.Mutex
	targets map[id.PersonID]bool
}

func (c *confirmedTargets) confirm(target id.PersonID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[target] = true
}

func (c *confirmedTargets) FindByTarget(_ context.Context, target id.PersonID) (*confirmationmodels.Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.targets[target] {
		return nil, sentinel.ErrNotFound
	}
	return &confirmationmodels.Confirmation{ID: id.NewConfirmationID(), TargetPersonID: target}, nil
}

type OrchestratorSuite struct {
	suite.Suite
	ctx           context.Context
	confirmations *confirmedTargets
	contacts      *contact.InMemory
	catalog       *memory.Catalog
	sharer        *memory.Sharer
	shares        *share.InMemory
	audits        *auditmemory.InMemoryStore
	orchestrator  *Orchestrator
	owner         id.PersonID
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.confirmations = &confirmedTargets{targets: make(map[id.PersonID]bool)}
	s.contacts = contact.NewInMemory()
	s.catalog = memory.NewCatalog()
	s.sharer = memory.NewSharer()
	s.shares = share.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.owner = id.NewPersonID()
	s.orchestrator = New(s.confirmations, s.contacts, s.catalog, s.sharer, s.shares,
		WithLogger(logger.Discard()),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithMaxParallel(3),
	)
}

func (s *OrchestratorSuite) messenger(role contactmodels.Role) id.ContactID {
	now := time.Now()
	c := &contactmodels.Contact{
		ID:               id.NewContactID(),
		OwnerPersonID:    s.owner,
		TargetEmail:      "messenger@example.com",
		FullName:         "Messenger",
		Phone:            "+15550101",
		ContactType:      contactmodels.ContactTypeTrusted,
		Role:             role,
		InvitationStatus: contactmodels.InvitationRegistered,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Require().NoError(s.contacts.Create(s.ctx, c))
	return c.ID
}

func (s *OrchestratorSuite) TestRequiresConfirmation() {
	s.catalog.AddContent(s.owner, "letter", nil)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com")

	_, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.Zero(s.sharer.TotalGrants())
}

func (s *OrchestratorSuite) TestReleasesGeneralAndAssignedContent() {
	s.confirmations.confirm(s.owner)
	messengerID := s.messenger(contactmodels.RoleLegacyMessenger)
	letter := s.catalog.AddContent(s.owner, "letter", nil)
	video := s.catalog.AddContent(s.owner, "video", &messengerID)
	s.catalog.SetGeneralRecipients(s.owner, "Hana@Example.com", " hana@example.com", "ivo@example.com")
	s.catalog.SetAssignedRecipients(messengerID, "jo@example.com")

	result, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.Require().NoError(err)

	s.Equal(3, result.Planned)
	s.Equal(3, result.Shared)
	s.Equal(1, s.sharer.Grants(models.Pair{ContentID: letter.ID, Recipient: "hana@example.com"}))
	s.Equal(1, s.sharer.Grants(models.Pair{ContentID: letter.ID, Recipient: "ivo@example.com"}))
	s.Equal(1, s.sharer.Grants(models.Pair{ContentID: video.ID, Recipient: "jo@example.com"}))
	s.Zero(s.sharer.Grants(models.Pair{ContentID: video.ID, Recipient: "hana@example.com"}))
	s.Equal(1, s.audits.CountAction(audit.EventReleaseShared))
}

func (s *OrchestratorSuite) TestDemotedMessengerFallsBackToGeneralRecipients() {
	s.confirmations.confirm(s.owner)
	guardianID := s.messenger(contactmodels.RoleGuardian)
	video := s.catalog.AddContent(s.owner, "video", &guardianID)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com")
	s.catalog.SetAssignedRecipients(guardianID, "jo@example.com")

	_, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(1, s.sharer.Grants(models.Pair{ContentID: video.ID, Recipient: "hana@example.com"}))
	s.Zero(s.sharer.Grants(models.Pair{ContentID: video.ID, Recipient: "jo@example.com"}))
}

func (s *OrchestratorSuite) TestSecondRunIsIdempotent() {
	s.confirmations.confirm(s.owner)
	s.catalog.AddContent(s.owner, "letter", nil)
	s.catalog.AddContent(s.owner, "photos", nil)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com", "ivo@example.com")

	_, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.Require().NoError(err)

	result, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(4, result.Planned)
	s.Equal(4, result.Skipped)
	s.Zero(result.Shared)
	s.Equal(4, s.sharer.TotalGrants())
}

func (s *OrchestratorSuite) TestPartialFailureThenRetry() {
	s.confirmations.confirm(s.owner)
	letter := s.catalog.AddContent(s.owner, "letter", nil)
	photos := s.catalog.AddContent(s.owner, "photos", nil)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com", "ivo@example.com")
	s.sharer.FailRecipient("ivo@example.com", 2)

	s.Run("failures are aggregated and successes kept", func() {
		result, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
		s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))

		var partial *models.PartialFailureError
		s.Require().True(errors.As(err, &partial))
		s.Len(partial.Failures, 2)
		for _, f := range partial.Failures {
			s.Equal("ivo@example.com", f.Recipient)
		}
		s.Equal(2, result.Shared)
		s.Equal(2, result.Failed)
		s.Equal(1, s.audits.CountAction(audit.EventReleasePartialFailure))
	})

	s.Run("re-invoking releases only the missing pairs", func() {
		result, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Equal(2, result.Skipped)
		s.Equal(2, result.Shared)
		for _, c := range []id.ContentID{letter.ID, photos.ID} {
			s.Equal(1, s.sharer.Grants(models.Pair{ContentID: c, Recipient: "hana@example.com"}))
			s.Equal(1, s.sharer.Grants(models.Pair{ContentID: c, Recipient: "ivo@example.com"}))
		}
	})
}

func (s *OrchestratorSuite) TestParallelismIsBounded() {
	s.confirmations.confirm(s.owner)
	for range 10 {
		s.catalog.AddContent(s.owner, "item", nil)
	}
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com")

	release := s.sharer.Block()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.orchestrator.OnConfirmed(s.ctx, s.owner)
	}()
	time.Sleep(50 * time.Millisecond)
	release()
	<-done

	s.LessOrEqual(s.sharer.PeakConcurrency(), 3)
	s.Equal(10, s.sharer.TotalGrants())
}

func (s *OrchestratorSuite) TestCancelledContextFailsRemainingPairs() {
	s.confirmations.confirm(s.owner)
	s.catalog.AddContent(s.owner, "letter", nil)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com", "ivo@example.com")

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	result, err := s.orchestrator.OnConfirmed(ctx, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.Equal(2, result.Failed)
	s.Zero(s.sharer.TotalGrants())
}

func (s *OrchestratorSuite) TestCatalogFailure() {
	s.confirmations.confirm(s.owner)
	s.catalog.FailListing(errors.New("content service down"))

	_, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *OrchestratorSuite) TestMarkViewedAndList() {
	s.confirmations.confirm(s.owner)
	s.catalog.AddContent(s.owner, "letter", nil)
	s.catalog.SetGeneralRecipients(s.owner, "hana@example.com")
	_, err := s.orchestrator.OnConfirmed(s.ctx, s.owner)
	s.Require().NoError(err)

	list, err := s.orchestrator.ListForRecipient(s.ctx, "HANA@example.com")
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	s.Run("another recipient cannot mark it", func() {
		_, err := s.orchestrator.MarkViewed(s.ctx, list[0].ID, "eve@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("recipient marks it viewed", func() {
		got, err := s.orchestrator.MarkViewed(s.ctx, list[0].ID, "hana@example.com")
		s.Require().NoError(err)
		s.True(got.IsViewed())
		s.Equal(1, s.audits.CountAction(audit.EventReleaseViewed))
	})
}
