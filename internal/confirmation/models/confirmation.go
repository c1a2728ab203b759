package models

import (
	"fmt"
	"strings"
	"time"

	contactmodels "heirloom/internal/contacts/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

type VerificationMethod string

const (
	VerificationDeathCertificate  VerificationMethod = "death_certificate"
	VerificationObituary          VerificationMethod = "obituary"
	VerificationPersonalKnowledge VerificationMethod = "personal_knowledge"
	VerificationOther             VerificationMethod = "other"
)

func (m VerificationMethod) IsValid() bool {
	switch m {
	case VerificationDeathCertificate, VerificationObituary, VerificationPersonalKnowledge, VerificationOther:
		return true
	}
	return false
}

const maxNotesLength = 2000

// Confirmation is the append-only record that a trusted contact declared
// the target deceased. At most one exists per target.
type Confirmation struct {
	ID                  id.ConfirmationID
	TargetPersonID      id.PersonID
	ConfirmedByPersonID id.PersonID
	ConfirmerRole       contactmodels.Role
	Notes               string
	VerificationMethod  VerificationMethod
	ClientIP            string
	UserAgent           string
	ConfirmedAt         time.Time
}

// ConfirmRequest is the body of POST /persons/{id}/deceased-confirmation.
type ConfirmRequest struct {
	Notes              string             `json:"notes,omitempty"`
	VerificationMethod VerificationMethod `json:"verification_method,omitempty"`
}

func (r *ConfirmRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
	r.VerificationMethod = VerificationMethod(strings.ToLower(strings.TrimSpace(string(r.VerificationMethod))))
	if r.VerificationMethod == "" {
		r.VerificationMethod = VerificationPersonalKnowledge
	}
}

func (r *ConfirmRequest) Validate() error {
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if !r.VerificationMethod.IsValid() {
		return dErrors.New(dErrors.CodeValidation,
			"verification_method must be one of death_certificate, obituary, personal_knowledge, other")
	}
	return nil
}

// ConfirmCommand carries an authenticated confirmation attempt.
type ConfirmCommand struct {
	RequesterPersonID id.PersonID
	RequesterEmail    string
	TargetPersonID    id.PersonID
	ConfirmRequest
}

// AlreadyConfirmedError reports that the target was already declared
// deceased. Effective is the confirmation that won; it can be nil when the
// account was marked deceased without a recorded confirmation.
type AlreadyConfirmedError struct {
	Effective *Confirmation
}

func (e *AlreadyConfirmedError) Error() string {
	if e.Effective == nil {
		return "already_confirmed: person is already deceased"
	}
	return fmt.Sprintf("already_confirmed: confirmed by %s at %s",
		e.Effective.ConfirmedByPersonID, e.Effective.ConfirmedAt.Format(time.RFC3339))
}

func (e *AlreadyConfirmedError) Unwrap() error {
	return dErrors.New(dErrors.CodeAlreadyConfirmed, "this person has already been confirmed deceased")
}
