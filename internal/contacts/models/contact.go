package models

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

type ContactType string

const (
	ContactTypeRegular ContactType = "regular"
	ContactTypeTrusted ContactType = "trusted"
)

func (t ContactType) IsValid() bool {
	return t == ContactTypeRegular || t == ContactTypeTrusted
}

// Role is the permission set a trusted contact holds over the owner's account.
type Role string

const (
	RoleExecutor        Role = "executor"
	RoleLegacyMessenger Role = "legacy_messenger"
	RoleGuardian        Role = "guardian"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleExecutor, RoleLegacyMessenger, RoleGuardian:
		return true
	}
	return false
}

type InvitationStatus string

const (
	InvitationPending    InvitationStatus = "pending"
	InvitationRegistered InvitationStatus = "registered"
	InvitationConfirmed  InvitationStatus = "confirmed"
)

// Rank orders statuses by strength: pending < registered < confirmed.
func (s InvitationStatus) Rank() int {
	switch s {
	case InvitationRegistered:
		return 1
	case InvitationConfirmed:
		return 2
	default:
		return 0
	}
}

// IsActive reports whether the relationship may exercise its role.
func (s InvitationStatus) IsActive() bool {
	return s == InvitationRegistered || s == InvitationConfirmed
}

// Source records which physical shape a record was read from.
type Source string

const (
	SourceCurrent Source = "current"
	SourceLegacy  Source = "legacy"
)

// Contact is a person the owner has listed, optionally elevated to trusted.
//
// Invariants:
//   - Trusted contacts have a non-empty email, phone and a valid role
//   - Regular contacts have no role and IsPrimary=false
//   - LinkedPersonID, once set, is never cleared or changed
//   - InvitationStatus only moves forward (pending → registered → confirmed)
type Contact struct {
	ID               id.ContactID
	OwnerPersonID    id.PersonID
	TargetEmail      string
	FullName         string
	Phone            string
	ContactType      ContactType
	Role             Role
	IsPrimary        bool
	LinkedPersonID   *id.PersonID
	InvitationStatus InvitationStatus
	Source           Source
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Contact) IsTrusted() bool {
	return c.ContactType == ContactTypeTrusted
}

func (c *Contact) IsLinked() bool {
	return c.LinkedPersonID != nil && !c.LinkedPersonID.IsNil()
}

// NeedsLinkRepair reports drift the reconciliation job fixes: no link yet, or
// a linked trusted contact still marked pending.
func (c *Contact) NeedsLinkRepair() bool {
	if !c.IsLinked() {
		return true
	}
	return c.IsTrusted() && c.InvitationStatus == InvitationPending
}

// NewContact builds a contact from a validated request. resolved is the
// target's person ID when the email already belongs to an account.
func NewContact(contactID id.ContactID, owner id.PersonID, req *CreateContactRequest, resolved *id.PersonID, now time.Time) (*Contact, error) {
	c := &Contact{
		ID:               contactID,
		OwnerPersonID:    owner,
		TargetEmail:      req.Email,
		FullName:         req.FullName,
		Phone:            req.Phone,
		ContactType:      req.ContactType,
		InvitationStatus: InvitationPending,
		Source:           SourceCurrent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if c.IsTrusted() {
		c.Role = req.Role
		c.IsPrimary = req.IsPrimary
	}
	if resolved != nil {
		// Linking an existing account trusts it immediately; there is no
		// separate approval step.
		linked := *resolved
		c.LinkedPersonID = &linked
		c.InvitationStatus = InvitationRegistered
	}
	if err := c.checkInvariants(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contact) checkInvariants() error {
	if c.TargetEmail == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact email is required")
	}
	if c.IsTrusted() {
		if c.Phone == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "trusted contact requires a phone number")
		}
		if !c.Role.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "trusted contact requires a role")
		}
		return nil
	}
	if c.Role != "" || c.IsPrimary {
		return dErrors.New(dErrors.CodeInvariantViolation, "regular contact cannot hold a role")
	}
	return nil
}

// CanPromote checks that the contact can become trusted.
func (c *Contact) CanPromote(role Role) error {
	if c.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "a phone number is required before promoting to trusted")
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be one of executor, guardian, legacy_messenger")
	}
	return nil
}

// ApplyPromotion elevates the contact. Call CanPromote first. A contact
// already linked to an account becomes registered on the spot.
func (c *Contact) ApplyPromotion(role Role, isPrimary bool, now time.Time) {
	c.ContactType = ContactTypeTrusted
	c.Role = role
	c.IsPrimary = isPrimary
	if c.IsLinked() && c.InvitationStatus == InvitationPending {
		c.InvitationStatus = InvitationRegistered
	}
	c.UpdatedAt = now
}

// ApplyDemotion returns the contact to regular and clears trust fields.
func (c *Contact) ApplyDemotion(now time.Time) {
	c.ContactType = ContactTypeRegular
	c.Role = ""
	c.IsPrimary = false
	c.UpdatedAt = now
}

// ApplyLink records the resolved identity and upgrades a pending trusted
// contact to registered. It reports whether anything changed.
func (c *Contact) ApplyLink(personID id.PersonID, now time.Time) bool {
	changed := false
	if !c.IsLinked() {
		linked := personID
		c.LinkedPersonID = &linked
		changed = true
	}
	if c.IsTrusted() && c.InvitationStatus == InvitationPending {
		c.InvitationStatus = InvitationRegistered
		changed = true
	}
	if changed {
		c.UpdatedAt = now
	}
	return changed
}
