// Package guard decides whether the current session may open a protected view.
package guard

import (
	"slices"

	"github.com/fastygo/storefront/domain"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
	AdminPath = "/admin"
)

// Outcome is the result of a guard decision.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Requirement describes what a protected view needs. No roles means any
// authenticated user.
type Requirement struct {
	Roles []domain.Role
}

// Authenticated is the default requirement.
func Authenticated() Requirement {
	return Requirement{}
}

// RequireRole limits a view to the listed roles.
func RequireRole(roles ...domain.Role) Requirement {
	return Requirement{Roles: roles}
}

// Decision is the outcome plus where to send the user when denied.
type Decision struct {
	Outcome  Outcome
	Location string
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// Decide is a pure function of the session and the requirement.
func Decide(s domain.Session, req Requirement) Decision {
	if !s.IsAuthenticated() {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}
	if len(req.Roles) > 0 && !slices.Contains(req.Roles, s.User.Role) {
		return Decision{Outcome: RedirectHome, Location: HomePath}
	}
	return Decision{Outcome: Allow}
}

// LandingPath is where a user goes right after logging in.
func LandingPath(user *domain.User) string {
	if user.IsAdmin() {
		return AdminPath
	}
	return HomePath
}
