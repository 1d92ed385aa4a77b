package domain

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity is what login and verify resolve a credential into.
type Identity struct {
	Token  string    `json:"token"`
	Name   string    `json:"name"`
	Email  string    `json:"email" validate:"omitempty,email"`
	Role   Role      `json:"role" validate:"omitempty,oneof=admin user"`
	Events []EventID `json:"events"`
}

// CurrentUser is the Event Store's notion of who is acting.
type CurrentUser struct {
	ID   string
	Role Role
}

// AnonymousUser is the placeholder used after logout so attendance checks fail closed.
func AnonymousUser() CurrentUser {
	return CurrentUser{Role: RoleUser}
}

func (u CurrentUser) Authenticated() bool { return u.ID != "" }

func (u CurrentUser) IsAdmin() bool { return u.Role == RoleAdmin }

// NormalizeRole maps anything the server sends that is not admin to user.
func NormalizeRole(r Role) Role {
	if r == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}
