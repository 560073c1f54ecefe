package models

// Role is the privilege level of a user. Roles are ordered: each role
// includes the clearance of everything below it.
type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleRank = map[Role]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasClearance reports whether r is at least as privileged as required.
// Unknown roles have no clearance at all.
func (r Role) HasClearance(required Role) bool {
	mine, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[required]
	if !ok {
		return false
	}
	return mine >= need
}
