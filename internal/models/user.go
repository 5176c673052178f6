package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents an application user stored in the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserContext identifies the caller of a store or composer operation.
type UserContext struct {
	UserID int64
	Email  string
	Role   UserRole
}

// IsAdmin reports whether the caller carries the admin role.
func (u UserContext) IsAdmin() bool {
	return u.Role == RoleAdmin
}
