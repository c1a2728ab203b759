package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactmodels "heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
)

func trusted(owner id.PersonID, role contactmodels.Role, status contactmodels.InvitationStatus, source contactmodels.Source) *contactmodels.Contact {
	return &contactmodels.Contact{
		ID:               id.NewContactID(),
		OwnerPersonID:    owner,
		TargetEmail:      "wes@example.com",
		Phone:            "+1555",
		ContactType:      contactmodels.ContactTypeTrusted,
		Role:             role,
		InvitationStatus: status,
		Source:           source,
	}
}

func TestFromContacts(t *testing.T) {
	owner := id.NewPersonID()

	t.Run("current beats legacy even when legacy is stronger", func(t *testing.T) {
		current := trusted(owner, contactmodels.RoleExecutor, contactmodels.InvitationPending, contactmodels.SourceCurrent)
		legacy := trusted(owner, contactmodels.RoleExecutor, contactmodels.InvitationConfirmed, contactmodels.SourceLegacy)

		got := FromContacts([]*contactmodels.Contact{legacy, current})
		require.Len(t, got, 1)
		assert.Equal(t, current.ID, got[0].ContactID)
	})

	t.Run("stronger status wins within the same source", func(t *testing.T) {
		weak := trusted(owner, contactmodels.RoleGuardian, contactmodels.InvitationPending, contactmodels.SourceLegacy)
		strong := trusted(owner, contactmodels.RoleGuardian, contactmodels.InvitationRegistered, contactmodels.SourceLegacy)

		got := FromContacts([]*contactmodels.Contact{strong, weak})
		require.Len(t, got, 1)
		assert.Equal(t, strong.ID, got[0].ContactID)
	})

	t.Run("different roles for one owner are kept apart", func(t *testing.T) {
		got := FromContacts([]*contactmodels.Contact{
			trusted(owner, contactmodels.RoleGuardian, contactmodels.InvitationRegistered, contactmodels.SourceCurrent),
			trusted(owner, contactmodels.RoleLegacyMessenger, contactmodels.InvitationRegistered, contactmodels.SourceCurrent),
		})
		assert.Len(t, got, 2)
	})

	t.Run("regular records are ignored", func(t *testing.T) {
		regular := trusted(owner, "", contactmodels.InvitationPending, contactmodels.SourceCurrent)
		regular.ContactType = contactmodels.ContactTypeRegular
		assert.Empty(t, FromContacts([]*contactmodels.Contact{regular}))
	})
}

func TestTrustorLinkedTo(t *testing.T) {
	personID := id.NewPersonID()
	assert.True(t, Trustor{}.LinkedTo(personID))
	assert.True(t, Trustor{LinkedPersonID: &personID}.LinkedTo(personID))
	assert.False(t, Trustor{LinkedPersonID: &personID}.LinkedTo(id.NewPersonID()))
}
