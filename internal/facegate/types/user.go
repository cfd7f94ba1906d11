package types

// Role is the access tier assigned to a user.  The set is fixed; role/time
// rules are a small table, not a rules engine.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleGuest    Role = "guest"
)

// Known reports whether r is one of the recognized roles.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleGuest:
		return true
	}
	return false
}

// User is a read-only snapshot of an enrolled user, supplied by the user
// store per decision.  The core never mutates it.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}
