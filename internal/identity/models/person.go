package models

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDeceased AccountStatus = "deceased"
)

// Person is a registered account holder.
//
// Invariants:
//   - Email is stored normalized (trimmed, lowercase) and is unique
//   - AccountStatus moves active → deceased exactly once and never back
type Person struct {
	ID            id.PersonID   `json:"id"`
	Email         string        `json:"email"`
	AccountStatus AccountStatus `json:"account_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewPerson(personID id.PersonID, address string, now time.Time) (*Person, error) {
	address = email.Normalize(address)
	if !email.IsValid(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "person email must be a valid address")
	}
	return &Person{
		ID:            personID,
		Email:         address,
		AccountStatus: AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *Person) IsDeceased() bool {
	return p.AccountStatus == AccountStatusDeceased
}

// CanMarkDeceased checks the only transition a person supports.
func (p *Person) CanMarkDeceased() error {
	if p.AccountStatus != AccountStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "person is not active")
	}
	return nil
}

func (p *Person) ApplyDeceased(now time.Time) {
	p.AccountStatus = AccountStatusDeceased
	p.UpdatedAt = now
}

// RegisterRequest is the body of POST /persons.
type RegisterRequest struct {
	Email string `json:"email"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !email.IsValid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return nil
}
