package models

// Role is the three-tier privilege hierarchy. Higher values outrank lower ones.
type Role string

const (
	RoleCaretaker  Role = "caretaker"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var rolePriority = map[Role]int{
	RoleCaretaker:  1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := rolePriority[r]
	return ok
}

// AtLeast reports whether the role meets or exceeds the required tier.
// Unknown roles never satisfy any requirement.
func (r Role) AtLeast(required Role) bool {
	return rolePriority[r] >= rolePriority[required] && rolePriority[r] > 0
}

// Outranks reports whether the role is strictly above the other.
func (r Role) Outranks(other Role) bool {
	return rolePriority[r] > rolePriority[other]
}
