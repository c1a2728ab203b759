package authz

import (
	"context"
	"log/slog"

	contactmodels "heirloom/internal/contacts/models"
	trustmodels "heirloom/internal/trust/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/requestcontext"
)

// TrustorSource returns the authoritative trustor list for an email.
type TrustorSource interface {
	Refresh(ctx context.Context, address string) ([]trustmodels.Trustor, error)
}

type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonNoRelationship   Reason = "no_relationship"
	ReasonRoleNotPermitted Reason = "role_not_permitted"
)

// Decision is the outcome of an authorization check. Role is the role the
// decision was made on; it is empty when no relationship exists.
type Decision struct {
	Allowed bool
	Role    contactmodels.Role
	Reason  Reason
}

// Err converts a denial into its typed error. Allowed decisions return nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonRoleNotPermitted:
		return dErrors.New(dErrors.CodeRoleNotPermitted, "your role does not permit this action")
	default:
		return dErrors.New(dErrors.CodeNoRelationship, "you are not a trusted contact of this person")
	}
}

type Guard struct {
	trustors TrustorSource
	logger   *slog.Logger
}

func NewGuard(trustors TrustorSource, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{trustors: trustors, logger: logger}
}

// Authorize checks whether the requester holds an active trusted
// relationship with target whose role permits action. Ordinary denial is a
// Decision, not an error; the error return is reserved for lookup failures.
func (g *Guard) Authorize(ctx context.Context, requesterEmail string, requester, target id.PersonID, action Action) (Decision, error) {
	trustors, err := g.trustors.Refresh(ctx, requesterEmail)
	if err != nil {
		return Decision{}, err
	}

	held := make(map[contactmodels.Role]struct{})
	for _, t := range trustors {
		if t.OwnerPersonID != target || !t.IsActive() || !t.LinkedTo(requester) {
			continue
		}
		held[t.Role] = struct{}{}
	}

	decision := decide(held, action)
	g.logger.DebugContext(ctx, "authorization decision",
		"requester_person_id", requester.String(),
		"target_person_id", target.String(),
		"action", string(action),
		"allowed", decision.Allowed,
		"reason", string(decision.Reason),
		"request_id", requestcontext.RequestID(ctx),
	)
	return decision, nil
}

func decide(held map[contactmodels.Role]struct{}, action Action) Decision {
	if len(held) == 0 {
		return Decision{Reason: ReasonNoRelationship}
	}
	var strongest contactmodels.Role
	for _, role := range rolePriority {
		if _, ok := held[role]; !ok {
			continue
		}
		if strongest == "" {
			strongest = role
		}
		if Permits(role, action) {
			return Decision{Allowed: true, Role: role, Reason: ReasonAllowed}
		}
	}
	return Decision{Role: strongest, Reason: ReasonRoleNotPermitted}
}
