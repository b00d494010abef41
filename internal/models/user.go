package models

import "time"

// Role is the explicit role tag resolved at authentication time.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// User is an account in the users table. PasswordHash never leaves the
// identity service.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Mobile       string    `json:"mobile,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is the authenticated caller passed to every guarded
// operation. It is resolved once at login and carried by the session.
type Identity struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"isActive"`
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IsOperator reports whether the caller is an active operator.
func (i Identity) IsOperator() bool { return i.Role == RoleOperator && i.IsActive }
