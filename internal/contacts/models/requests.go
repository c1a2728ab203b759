package models

import (
	"strings"

	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
)

const (
	maxNameLength  = 200
	maxPhoneLength = 32
)

// CreateContactRequest is the body of POST /contacts.
type CreateContactRequest struct {
	Email       string      `json:"email"`
	FullName    string      `json:"full_name"`
	Phone       string      `json:"phone,omitempty"`
	ContactType ContactType `json:"contact_type"`
	Role        Role        `json:"role,omitempty"`
	IsPrimary   bool        `json:"is_primary,omitempty"`
}

func (r *CreateContactRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if r.ContactType == "" {
		r.ContactType = ContactTypeRegular
	}
}

func (r *CreateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !email.IsValid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if len(r.FullName) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "full_name is too long")
	}
	if len(r.Phone) > maxPhoneLength {
		return dErrors.New(dErrors.CodeValidation, "phone is too long")
	}
	if !r.ContactType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "contact_type must be regular or trusted")
	}
	if r.ContactType == ContactTypeTrusted {
		if r.Phone == "" {
			return dErrors.New(dErrors.CodeValidation, "phone is required for trusted contacts")
		}
		if !r.Role.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "role must be one of executor, guardian, legacy_messenger")
		}
		return nil
	}
	if r.Role != "" || r.IsPrimary {
		return dErrors.New(dErrors.CodeValidation, "role and is_primary apply only to trusted contacts")
	}
	return nil
}

// PromoteRequest is the body of POST /contacts/{id}/promote.
type PromoteRequest struct {
	Role      Role `json:"role"`
	IsPrimary bool `json:"is_primary,omitempty"`
}

func (r *PromoteRequest) Normalize() {
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

func (r *PromoteRequest) Validate() error {
	if !r.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be one of executor, guardian, legacy_messenger")
	}
	return nil
}
