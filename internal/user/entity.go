// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

// User is an account. VerificationCode holds the hash of the pending
// validation or recovery code, never the code itself.
type User struct {
	ID               string     `db:"id"`
	Name             string     `db:"name"`
	Email            string     `db:"email"`
	PasswordHash     string     `db:"password_hash"`
	Role             string     `db:"role"`
	Validated        bool       `db:"validated"`
	Attempts         int        `db:"attempts"`
	VerificationCode *string    `db:"verification_code"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == core.RoleAdmin
}

// Counts summarizes live accounts for the admin dashboard.
type Counts struct {
	Total        int `db:"total"         json:"total"`
	Validated    int `db:"validated"     json:"validated"`
	Locked       int `db:"locked"        json:"locked"`
	Admins       int `db:"admins"        json:"administradores"`
	Coordinators int `db:"coordinators"  json:"coordinadores"`
	Users        int `db:"users"         json:"usuarios"`
}
