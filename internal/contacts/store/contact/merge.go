// Package contact stores contact records across the legacy flat shape and the
// current contacts + contact_relationships shape. Reads merge both shapes;
// writes always land in the current shape.
package contact

import (
	"bytes"
	"sort"
	"strings"

	"heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
)

// Merge combines current and legacy records. A current record shadows a
// legacy record with the same ID. The result is ordered by ID.
func Merge(current, legacy []*models.Contact) []*models.Contact {
	seen := make(map[id.ContactID]struct{}, len(current))
	out := make([]*models.Contact, 0, len(current)+len(legacy))
	for _, c := range current {
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range legacy {
		if _, shadowed := seen[c.ID]; shadowed {
			continue
		}
		out = append(out, c)
	}
	sortByID(out)
	return out
}

func sortByID(records []*models.Contact) {
	sort.Slice(records, func(i, j int) bool {
		return idLess(records[i].ID, records[j].ID)
	})
}

// idLess matches Postgres uuid ordering (bytewise).
func idLess(a, b id.ContactID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// legacyInvitationStatus maps the free-form invite_status column. Unknown
// values are treated as pending so reconciliation can repair them.
func legacyInvitationStatus(raw string) models.InvitationStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "registered", "accepted":
		return models.InvitationRegistered
	case "confirmed":
		return models.InvitationConfirmed
	default:
		return models.InvitationPending
	}
}
