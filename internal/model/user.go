package model

import (
	"strings"
	"time"
)

// Role is the closed set of roles an identity can hold.  The zero value is
// not a valid role; identity stubs built from an expired token on the logout
// route carry it.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every role.  Decision tables keyed by role are checked against
// this list in tests.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether r is allowed into moderation tooling.
func (r Role) IsPrivileged() bool { return r == RoleModerator || r == RoleAdmin }

// User represents a row of the `users` table and is the authenticated
// principal attached to a request.  PasswordHash and RefreshTokenHash never
// leave the process.
//
// Fields:
//
//	ID               – UUID primary key.
//	Username         – unique, stored lower-cased.
//	Email            – unique, stored lower-cased.
//	FullName         – display name.
//	Avatar           – public URL of the uploaded avatar (may be empty).
//	CoverImage       – public URL of the cover image (may be empty).
//	PasswordHash     – bcrypt hash.
//	Role             – user, moderator or admin.
//	IsDisabled       – disabled accounts cannot use protected routes.
//	RefreshTokenHash – SHA-256 of the single refresh token currently honoured ("" = none).
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"userName"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	Avatar           string    `json:"avatar"`
	CoverImage       string    `json:"coverImage"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	IsDisabled       bool      `json:"isDisabled"`
	RefreshTokenHash string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NormalizeHandle lower-cases and trims a username or email.
func NormalizeHandle(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
