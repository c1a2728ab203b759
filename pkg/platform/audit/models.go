// Package audit records who did what to whose account.
//
// Events are categorized so the publisher can decide how hard to try:
// compliance events are written synchronously and fail the calling
// operation when persistence fails; security and operations events may be
// buffered and dropped under pressure.
package audit

import (
	"time"

	id "heirloom/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers lifecycle events with legal significance:
	// deceased confirmations, trust grants, content releases.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied sensitive actions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as reconciliation runs.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// PersonID is the account the event is about (the owner or the deceased).
	PersonID id.PersonID
	// ActorID is the person who performed the action, when different.
	ActorID   id.PersonID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	IP        string
	UserAgent string
}

type AuditEvent string

const (
	EventPersonRegistered AuditEvent = "person_registered"

	EventContactCreated  AuditEvent = "contact_created"
	EventContactPromoted AuditEvent = "contact_promoted"
	EventContactDemoted  AuditEvent = "contact_demoted"
	EventContactDeleted  AuditEvent = "contact_deleted"
	EventContactLinked   AuditEvent = "contact_linked"

	EventDeceasedConfirmed     AuditEvent = "deceased_confirmed"
	EventConfirmationDenied    AuditEvent = "deceased_confirmation_denied"
	EventConfirmationDuplicate AuditEvent = "deceased_confirmation_duplicate"

	EventReleaseShared         AuditEvent = "release_shared"
	EventReleasePartialFailure AuditEvent = "release_partial_failure"
	EventReleaseViewed         AuditEvent = "release_viewed"

	EventReconciliationRun AuditEvent = "reconciliation_run"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPersonRegistered:  CategoryCompliance,
	EventContactPromoted:   CategoryCompliance,
	EventContactDemoted:    CategoryCompliance,
	EventContactDeleted:    CategoryCompliance,
	EventDeceasedConfirmed: CategoryCompliance,
	EventReleaseShared:     CategoryCompliance,

	EventConfirmationDenied:    CategorySecurity,
	EventConfirmationDuplicate: CategorySecurity,
	EventReleasePartialFailure: CategorySecurity,

	EventContactCreated:    CategoryOperations,
	EventContactLinked:     CategoryOperations,
	EventReleaseViewed:     CategoryOperations,
	EventReconciliationRun: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
