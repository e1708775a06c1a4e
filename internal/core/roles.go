// AngelaMos | 2026
// roles.go

package core

const (
	RoleAdmin       = "administrador"
	RoleCoordinator = "coordinador"
	RoleUser        = "usuario"
)

var PrivilegedRoles = []string{RoleAdmin, RoleCoordinator}

// IsPrivileged reports whether role may see unverified theses and manage them.
func IsPrivileged(role string) bool {
	return role == RoleAdmin || role == RoleCoordinator
}

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCoordinator || role == RoleUser
}
