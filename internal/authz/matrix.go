// Package authz decides whether a requester may act on an owner's account
// through a trusted relationship.
package authz

import contactmodels "heirloom/internal/contacts/models"

type Action string

const (
	ActionMarkDeceased    Action = "mark_deceased"
	ActionReleaseAll      Action = "release_all"
	ActionReleaseAssigned Action = "release_assigned"
	ActionMonitor         Action = "monitor"
)

// permissions is the whole policy. Adding a role or action is a data change.
var permissions = map[contactmodels.Role]map[Action]struct{}{
	contactmodels.RoleExecutor: {
		ActionMarkDeceased: {},
		ActionReleaseAll:   {},
	},
	contactmodels.RoleGuardian: {
		ActionMarkDeceased: {},
		ActionMonitor:      {},
	},
	contactmodels.RoleLegacyMessenger: {
		ActionReleaseAssigned: {},
	},
}

// rolePriority orders roles when a requester holds several for one owner.
var rolePriority = []contactmodels.Role{
	contactmodels.RoleExecutor,
	contactmodels.RoleGuardian,
	contactmodels.RoleLegacyMessenger,
}

// Permits reports whether role grants action.
func Permits(role contactmodels.Role, action Action) bool {
	_, ok := permissions[role][action]
	return ok
}
