package shared

// Permission names the service enforces on its own endpoints.
const (
	PermAdministrationView     = "administration.view"
	PermAdministrationEdit     = "administration.edit"
	PermAdministrationFullEdit = "administration.full_edit"

	PermSecurityView = "security.view"
	PermSecurityEdit = "security.edit"

	PermUsersView = "users.view"
)

// PlatformScopes lists the permissions guarding the administrative surface.
func PlatformScopes() []string {
	return []string{
		PermAdministrationView,
		PermAdministrationEdit,
		PermAdministrationFullEdit,
		PermSecurityView,
		PermSecurityEdit,
		PermUsersView,
	}
}
