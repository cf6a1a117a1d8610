package domain

import (
	"encoding/json"
	"strings"
)

// Role is the storefront role attached to an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
	RoleUser     Role = "user"
)

// ParseRole maps the backend representation onto a known role. Empty or
// unknown values become RoleUser.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleCashier:
		return RoleCashier
	case RoleCustomer:
		return RoleCustomer
	default:
		return RoleUser
	}
}

// User is the session-scoped snapshot of the logged in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Valid reports whether the snapshot carries the fields a session needs.
func (u *User) Valid() bool {
	return u != nil && u.ID != "" && u.Username != ""
}

// Profile is the user object as returned by the backend. The id may arrive as
// a number or a string and the role may be missing.
type Profile struct {
	ID       json.RawMessage `json:"id"`
	Username string          `json:"username"`
	Role     string          `json:"role,omitempty"`
	Email    string          `json:"email"`
}

// Normalize converts the backend profile into the session user shape.
func (p Profile) Normalize() *User {
	return &User{
		ID:       rawID(p.ID),
		Username: p.Username,
		Role:     ParseRole(p.Role),
		Email:    p.Email,
	}
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
