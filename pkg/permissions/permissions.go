// Copyright 2025 Certen Protocol
//
// Package permissions implements the engine's role-based access matrix:
// four fixed roles, each granted a fixed set of permissions. There is no
// per-contributor override — a role's permissions are whatever the
// matrix below says, full stop.
package permissions

import "fmt"

// Role is one of the four fixed contributor roles.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAgent    Role = "agent"
	RoleCurator  Role = "curator"
	RoleTester   Role = "tester"
)

// Permission is one discrete capability the engine gates on a role.
type Permission string

const (
	PermissionSignalSubmit      Permission = "signal.submit"
	PermissionBrainCycle        Permission = "brain.cycle"
	PermissionBrainStatus       Permission = "brain.status"
	PermissionKillSwitch        Permission = "kill_switch"
	PermissionKarmaSettle       Permission = "karma.settle"
	PermissionKarmaView         Permission = "karma.view"
	PermissionProducerRegister  Permission = "producer.register"
	PermissionProducerManageAll Permission = "producer.manage_all"
	PermissionContributorManage Permission = "contributor.manage"
	PermissionEventsRead        Permission = "events.read"
	PermissionConfigRead        Permission = "config.read"
	PermissionConfigWrite       Permission = "config.write"
)

// allPermissions lists every permission the matrix can grant, used to
// give the operator role the full set without repeating it by hand.
var allPermissions = []Permission{
	PermissionSignalSubmit,
	PermissionBrainCycle,
	PermissionBrainStatus,
	PermissionKillSwitch,
	PermissionKarmaSettle,
	PermissionKarmaView,
	PermissionProducerRegister,
	PermissionProducerManageAll,
	PermissionContributorManage,
	PermissionEventsRead,
	PermissionConfigRead,
	PermissionConfigWrite,
}

// matrix is the role -> permission-set table. operator has every
// permission; the other three are each a strict subset, narrowing in
// the order agent > curator > tester.
var matrix = map[Role]map[Permission]struct{}{
	RoleOperator: permSet(allPermissions...),
	RoleAgent: permSet(
		PermissionSignalSubmit,
		PermissionBrainStatus,
		PermissionKarmaView,
		PermissionProducerRegister,
		PermissionEventsRead,
		PermissionConfigRead,
	),
	RoleCurator: permSet(
		PermissionSignalSubmit,
		PermissionBrainStatus,
		PermissionKarmaView,
		PermissionEventsRead,
	),
	RoleTester: permSet(
		PermissionSignalSubmit,
		PermissionBrainStatus,
		PermissionEventsRead,
	),
}

func permSet(perms ...Permission) map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// CheckResult is the outcome of a Check call, carrying a reason when the
// check failed so a caller can log or return it verbatim.
type CheckResult struct {
	Allowed bool
	Reason  string
}

// Check reports whether role holds permission, with a human-readable
// reason attached on denial. An unrecognized role is always denied.
func Check(role Role, permission Permission) CheckResult {
	perms, ok := matrix[role]
	if !ok {
		return CheckResult{Allowed: false, Reason: fmt.Sprintf("unknown role: %q", role)}
	}
	if _, granted := perms[permission]; granted {
		return CheckResult{Allowed: true}
	}
	return CheckResult{Allowed: false, Reason: fmt.Sprintf("role %q lacks permission %q", role, permission)}
}

// Has is the boolean-only form of Check, for call sites that don't need
// the denial reason.
func Has(role Role, permission Permission) bool {
	return Check(role, permission).Allowed
}

// Permissions returns every permission granted to role, or nil for an
// unrecognized role.
func Permissions(role Role) []Permission {
	perms, ok := matrix[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(perms))
	for _, p := range allPermissions {
		if _, granted := perms[p]; granted {
			out = append(out, p)
		}
	}
	return out
}
