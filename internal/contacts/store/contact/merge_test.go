package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
)

func TestMerge(t *testing.T) {
	shared := id.NewContactID()
	current := []*models.Contact{{ID: shared, FullName: "current", Source: models.SourceCurrent}}
	legacy := []*models.Contact{
		{ID: shared, FullName: "legacy", Source: models.SourceLegacy},
		{ID: id.NewContactID(), FullName: "legacy only", Source: models.SourceLegacy},
	}

	merged := Merge(current, legacy)
	assert.Len(t, merged, 2)
	for _, c := range merged {
		if c.ID == shared {
			assert.Equal(t, "current", c.FullName)
		}
	}
	assert.True(t, idLess(merged[0].ID, merged[1].ID))
}

func TestLegacyInvitationStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want models.InvitationStatus
	}{
		{"pending", models.InvitationPending},
		{" Accepted ", models.InvitationRegistered},
		{"registered", models.InvitationRegistered},
		{"CONFIRMED", models.InvitationConfirmed},
		{"", models.InvitationPending},
		{"bounced", models.InvitationPending},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, legacyInvitationStatus(tt.raw))
		})
	}
}
