package shared

import "strings"

// Role is the coarse permission level carried by an actor.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRequester Role = "requester"
)

// ParseRole normalises a raw role claim. Unknown values map to requester.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleRequester
	}
}

// Actor identifies who performs an operation. It is passed explicitly into
// every service call.
type Actor struct {
	ID       int64
	Name     string
	Email    string
	Role     Role
	SectorID int64
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
