package models

import (
	"fmt"
	"strings"
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// Share records that one content item was released to one recipient.
// It is created once per (ContentID, RecipientIdentity) and afterwards only
// ViewedAt changes, once.
type Share struct {
	ID                id.ShareID
	ContentID         id.ContentID
	OwnerPersonID     id.PersonID
	RecipientIdentity string
	ReleasedAt        time.Time
	ViewedAt          *time.Time
	IsLegacyRelease   bool
}

func (s *Share) IsViewed() bool {
	return s.ViewedAt != nil
}

// Content is one private item in the owner's catalog. AssignedContactID names
// the legacy messenger relationship responsible for it, if any.
type Content struct {
	ID                id.ContentID
	OwnerPersonID     id.PersonID
	Title             string
	AssignedContactID *id.ContactID
}

func (c Content) IsAssigned() bool {
	return c.AssignedContactID != nil && !c.AssignedContactID.IsNil()
}

// Result summarizes one release run.
type Result struct {
	TargetPersonID id.PersonID `json:"target_person_id"`
	Planned        int         `json:"planned"`
	Shared         int         `json:"shared"`
	Skipped        int         `json:"skipped"`
	Failed         int         `json:"failed"`
}

// ItemFailure is one (content, recipient) pair that could not be released.
type ItemFailure struct {
	ContentID id.ContentID
	Recipient string
	Err       error
}

// PartialFailureError reports the pairs that failed in a release run. Pairs
// that succeeded stay released; running the release again retries only the
// failed pairs.
type PartialFailureError struct {
	Failures []ItemFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s→%s: %v", f.ContentID, f.Recipient, f.Err))
	}
	return fmt.Sprintf("partial_failure: %d release(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() error {
	return dErrors.New(dErrors.CodePartialFailure,
		fmt.Sprintf("%d content release(s) failed; retry to resume", len(e.Failures)))
}

// Pair identifies one (content, recipient) release unit.
type Pair struct {
	ContentID id.ContentID
	Recipient string
}

func (s *Share) Pair() Pair {
	return Pair{ContentID: s.ContentID, Recipient: s.RecipientIdentity}
}

// NewShare builds the record written after a successful external share.
func NewShare(pair Pair, owner id.PersonID, now time.Time) *Share {
	return &Share{
		ID:                id.NewShareID(),
		ContentID:         pair.ContentID,
		OwnerPersonID:     owner,
		RecipientIdentity: pair.Recipient,
		ReleasedAt:        now,
		IsLegacyRelease:   true,
	}
}
