package models

import (
	"bytes"
	"sort"

	contactmodels "heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
)

// Trustor is one owner who has designated a given email as a trusted contact.
type Trustor struct {
	OwnerPersonID    id.PersonID                    `json:"owner_person_id"`
	ContactID        id.ContactID                   `json:"contact_id"`
	Role             contactmodels.Role             `json:"role"`
	IsPrimary        bool                           `json:"is_primary"`
	InvitationStatus contactmodels.InvitationStatus `json:"invitation_status"`
	LinkedPersonID   *id.PersonID                   `json:"linked_person_id,omitempty"`
	Source           contactmodels.Source           `json:"source"`
}

// IsActive reports whether the relationship may exercise its role.
func (t Trustor) IsActive() bool {
	return t.InvitationStatus.IsActive()
}

// LinkedTo reports whether the entry may act for personID. An entry that is
// not yet linked matches any requester holding the email.
func (t Trustor) LinkedTo(personID id.PersonID) bool {
	return t.LinkedPersonID == nil || *t.LinkedPersonID == personID
}

type dedupeKey struct {
	owner id.PersonID
	role  contactmodels.Role
}

// FromContacts builds trustors from trusted contact records, keeping one
// entry per (owner, role). A current record beats a legacy one; among equals
// the stronger invitation status wins.
func FromContacts(records []*contactmodels.Contact) []Trustor {
	best := make(map[dedupeKey]Trustor, len(records))
	for _, c := range records {
		if !c.IsTrusted() {
			continue
		}
		t := Trustor{
			OwnerPersonID:    c.OwnerPersonID,
			ContactID:        c.ID,
			Role:             c.Role,
			IsPrimary:        c.IsPrimary,
			InvitationStatus: c.InvitationStatus,
			Source:           c.Source,
		}
		if c.IsLinked() {
			linked := *c.LinkedPersonID
			t.LinkedPersonID = &linked
		}
		key := dedupeKey{owner: c.OwnerPersonID, role: c.Role}
		if existing, ok := best[key]; !ok || preferred(t, existing) {
			best[key] = t
		}
	}

	out := make([]Trustor, 0, len(best))
	for _, t := range best {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].OwnerPersonID[:], out[j].OwnerPersonID[:]); c != 0 {
			return c < 0
		}
		return out[i].Role < out[j].Role
	})
	return out
}

func preferred(candidate, existing Trustor) bool {
	if candidate.Source != existing.Source {
		return candidate.Source == contactmodels.SourceCurrent
	}
	return candidate.InvitationStatus.Rank() > existing.InvitationStatus.Rank()
}
