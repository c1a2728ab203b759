// Package domain holds the typed identifiers shared across heirloom packages.
//
// Each identifier is a distinct named uuid.UUID so the compiler rejects a
// ContactID where a PersonID is expected. Parsing happens once at the trust
// boundary (handlers, consumers); services only ever see typed values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "heirloom/pkg/domain-errors"
)

type (
	PersonID       uuid.UUID
	ContactID      uuid.UUID
	ConfirmationID uuid.UUID
	ContentID      uuid.UUID
	ShareID        uuid.UUID
)

func (id PersonID) String() string       { return uuid.UUID(id).String() }
func (id ContactID) String() string      { return uuid.UUID(id).String() }
func (id ConfirmationID) String() string { return uuid.UUID(id).String() }
func (id ContentID) String() string      { return uuid.UUID(id).String() }
func (id ShareID) String() string        { return uuid.UUID(id).String() }

func (id PersonID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ContactID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ConfirmationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ContentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ShareID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func NewPersonID() PersonID             { return PersonID(uuid.New()) }
func NewContactID() ContactID           { return ContactID(uuid.New()) }
func NewConfirmationID() ConfirmationID { return ConfirmationID(uuid.New()) }
func NewContentID() ContentID           { return ContentID(uuid.New()) }
func NewShareID() ShareID               { return ShareID(uuid.New()) }

// Text encoding lets the IDs appear as canonical strings in JSON payloads
// (cache entries, outbox rows, Kafka messages).
func (id PersonID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ContactID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ConfirmationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ContentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ShareID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *PersonID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ContactID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ConfirmationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ContentID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ShareID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s, "person ID")
	return PersonID(u), err
}

func ParseContactID(s string) (ContactID, error) {
	u, err := parseUUID(s, "contact ID")
	return ContactID(u), err
}

func ParseConfirmationID(s string) (ConfirmationID, error) {
	u, err := parseUUID(s, "confirmation ID")
	return ConfirmationID(u), err
}

func ParseContentID(s string) (ContentID, error) {
	u, err := parseUUID(s, "content ID")
	return ContentID(u), err
}

func ParseShareID(s string) (ShareID, error) {
	u, err := parseUUID(s, "share ID")
	return ShareID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
// uuid.Parse also accepts braced and urn-prefixed forms; only the canonical
// 36 character form is allowed through.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) != 36 || strings.ContainsAny(s, "{}:") {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
