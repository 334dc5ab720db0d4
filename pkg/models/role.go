package models

// Role identifies a stakeholder group in the lease exit process. The set is
// closed: routing, approval chains, and directory lookups only ever address
// these roles.
type Role string

const (
	RoleLeaseExitManagement Role = "lease_exit_management"
	RoleAdvisory            Role = "advisory"
	RoleIFM                 Role = "ifm"
	RoleLegal               Role = "legal"
	RoleMAC                 Role = "mac"
	RolePJM                 Role = "pjm"
	RoleAccounting          Role = "accounting"
)

// AllRoles returns every known stakeholder role, in a stable order.
func AllRoles() []Role {
	return []Role{
		RoleLeaseExitManagement,
		RoleAdvisory,
		RoleIFM,
		RoleLegal,
		RoleMAC,
		RolePJM,
		RoleAccounting,
	}
}

// KnownRole reports whether r is one of the closed set of stakeholder roles.
func KnownRole(r Role) bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}

	return false
}
