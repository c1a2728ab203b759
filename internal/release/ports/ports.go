// Package ports declares the narrow interfaces to the external content
// service. Content storage and delivery live there, not here.
package ports

import (
	"context"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
)

// ContentCatalog enumerates an owner's private content and who it goes to.
type ContentCatalog interface {
	ListPrivateContent(ctx context.Context, owner id.PersonID) ([]models.Content, error)
	// GeneralRecipients are the owner's recipients for unassigned content.
	GeneralRecipients(ctx context.Context, owner id.PersonID) ([]string, error)
	// AssignedRecipients are the recipients a legacy messenger relationship
	// delivers to.
	AssignedRecipients(ctx context.Context, owner id.PersonID, contactID id.ContactID) ([]string, error)
}

// ContentSharer grants a recipient access to a content item. Implementations
// must be idempotent: a release retried after a crash may share a pair again.
type ContentSharer interface {
	Share(ctx context.Context, contentID id.ContentID, recipient string) error
}
