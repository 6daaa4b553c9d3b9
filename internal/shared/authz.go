package shared

// RoleSuperAdmin is the protected bootstrap role. It is excluded from role
// listings and can never be deleted.
const RoleSuperAdmin = "SUPER_ADMIN"

// User management permissions.
const (
	PermUsersView   = "users.view"
	PermUsersCreate = "users.create"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"
)

// PermissionCatalog lists every permission the panel knows about, with the
// description shown on the role form.
func PermissionCatalog() map[string]string {
	return map[string]string{
		PermUsersView:   "View user accounts",
		PermUsersCreate: "Create user accounts",
		PermUsersEdit:   "Edit user accounts",
		PermUsersDelete: "Delete user accounts",
	}
}
