package domain

// Role is a team membership privilege level.
type Role string

// Roles from highest to lowest privilege.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleDev     Role = "dev"
	RoleGuest   Role = "guest"
)

// DefaultMemberRole is assigned when a member is added without a role.
const DefaultMemberRole = RoleDev

var roleRank = map[Role]int{
	RoleAdmin:   4,
	RoleManager: 3,
	RoleDev:     2,
	RoleGuest:   1,
}

// ValidRoles returns the roles in privilege order, highest first.
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleDev, RoleGuest}
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r meets or exceeds min. Unknown roles meet nothing.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	return ok && rank >= roleRank[min]
}

// IsAdmin reports whether r is the top privilege level.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
