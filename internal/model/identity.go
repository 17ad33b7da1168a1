package model

// Identity is the authenticated actor of a request. The zero value is the
// anonymous caller.
type Identity struct {
	UserID string
	Role   Role
}

// Anonymous reports whether no user is authenticated.
func (i Identity) Anonymous() bool { return i.UserID == "" }

// IsAdmin reports whether the actor holds the admin role.
func (i Identity) IsAdmin() bool { return !i.Anonymous() && i.Role == RoleAdmin }

// IsSelf reports whether the actor is the user with the given id.
func (i Identity) IsSelf(userID string) bool {
	return !i.Anonymous() && i.UserID == userID
}
