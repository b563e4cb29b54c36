package rbac

type Role string

const (
	RoleIntakeUser      Role = "intake_user"
	RoleReviewerManager Role = "reviewer_manager"
	RoleAdministrator   Role = "administrator"
)

// Roles form a total order; a role satisfies a requirement when its rank
// is at least the rank of any required role.
var rank = map[Role]int{
	RoleIntakeUser:      1,
	RoleReviewerManager: 2,
	RoleAdministrator:   3,
}

func Rank(role Role) int {
	return rank[role]
}

// Has reports whether role satisfies at least one of the required roles.
// An unknown or empty role has rank 0 and fails every check.
func Has(role Role, required ...Role) bool {
	level := rank[role]
	if level == 0 {
		return false
	}
	for _, req := range required {
		if level >= rank[req] {
			return true
		}
	}
	return false
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleIntakeUser, RoleReviewerManager, RoleAdministrator:
		return Role(role)
	default:
		return RoleIntakeUser
	}
}

func Valid(role string) bool {
	_, ok := rank[Role(role)]
	return ok
}
