package model

// Capability names an action guarded by the role gate.
type Capability string

const (
	CapManageCatalog  Capability = "catalog:manage"
	CapManageUsers    Capability = "users:manage"
	CapManageMessages Capability = "messages:manage"
	CapUpload         Capability = "uploads:create"
	CapDeleteUploads  Capability = "uploads:delete"
	CapAssignRoles    Capability = "users:assign-role"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapManageCatalog:  true,
		CapManageUsers:    true,
		CapManageMessages: true,
		CapUpload:         true,
		CapDeleteUploads:  true,
		CapAssignRoles:    true,
	},
	RoleCustomer: {
		CapUpload: true,
	},
}

// Can reports whether the identity holds the capability. Anonymous callers
// hold none.
func Can(id Identity, c Capability) bool {
	if id.Anonymous() {
		return false
	}
	return roleCapabilities[id.Role][c]
}

// CanAccessUser reports whether the identity may read or edit the profile of
// the given user: the user themself or an admin.
func CanAccessUser(id Identity, userID string) bool {
	return id.IsSelf(userID) || Can(id, CapManageUsers)
}
