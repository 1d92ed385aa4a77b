package domain

// Management actions gated to admins.
const (
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// AuthorizeManage rejects create/edit/delete for non-admins before any
// request is built. The server still enforces its own rules.
func AuthorizeManage(u CurrentUser, action string) error {
	if !u.IsAdmin() {
		return ErrPermission(action)
	}
	return nil
}

// AuthorizeAttendance rejects attendance toggles for an anonymous user.
func AuthorizeAttendance(u CurrentUser) error {
	if !u.Authenticated() {
		return ErrUnauthenticated()
	}
	return nil
}
