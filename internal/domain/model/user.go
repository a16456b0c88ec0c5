//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"time"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
)

// User represents a local user account. Connections embed the external
// provider links as an ordered jsonb sequence; at most one per provider type
// in practice, though the storage does not structurally enforce it.
type User struct {
	ID            string                  `json:"id"                      db:"id"`
	Email         string                  `json:"email"                   db:"email"`
	Connections   []domainauth.Connection `json:"connections"             db:"connections"`
	Roles         []string                `json:"roles"                   db:"roles"`
	CanLogin      bool                    `json:"can_login"               db:"can_login"`
	Verified      bool                    `json:"verified"                db:"verified"`
	LastSessionAt *time.Time              `json:"last_session_at,omitempty" db:"last_session_at"`
	CreatedAt     time.Time               `json:"created_at"              db:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"              db:"updated_at"`
}

// ConnectionFor returns the user's connection for the given provider, if any.
func (u *User) ConnectionFor(provider string) (domainauth.Connection, bool) {
	for _, c := range u.Connections {
		if c.Provider == provider {
			return c, true
		}
	}
	return domainauth.Connection{}, false
}

// RoleList converts the stored role strings into domain roles.
func (u *User) RoleList() []domainauth.Role {
	roles := make([]domainauth.Role, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = domainauth.Role(r)
	}
	return roles
}
