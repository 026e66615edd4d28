package service

import "github.com/iliyamo/civic-budget/internal/model"

// Principal is the authenticated caller as established by the identity
// layer. Every operation that depends on who is asking takes one
// explicitly.
type Principal struct {
	ID   uint64
	Role model.Role
}

// Is reports whether the principal holds one of roles.
func (p Principal) Is(roles ...model.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func (p Principal) isStaff() bool { return p.Role.IsStaff() }
