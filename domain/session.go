package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of the in-memory session.
type Status int

const (
	StatusAnonymous Status = iota
	StatusAuthenticated
	// StatusExpired only exists while a logout is tearing the session down.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "anonymous":
		*s = StatusAnonymous
	case "authenticated":
		*s = StatusAuthenticated
	case "expired":
		*s = StatusExpired
	default:
		return fmt.Errorf("unknown session status %q", text)
	}
	return nil
}

// Session is the authoritative record of who is logged in.
type Session struct {
	Token  string `json:"-"`
	User   *User  `json:"user,omitempty"`
	Status Status `json:"status"`
}

// Anonymous returns the empty session.
func Anonymous() Session {
	return Session{Status: StatusAnonymous}
}

func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != "" && s.User != nil
}

// Credential is the persisted counterpart of an authenticated session.
type Credential struct {
	Token string
	User  *User
}

// Complete reports whether both halves of the record are present.
func (c *Credential) Complete() bool {
	return c != nil && c.Token != "" && c.User.Valid()
}

// Credentials is the login form payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the registration form payload.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what the backend answers on a successful login or signup.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// Result is the uniform outcome of the password reset flows.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionEventType names a session transition recorded in the audit trail.
type SessionEventType string

const (
	EventLogin       SessionEventType = "login"
	EventLoginFailed SessionEventType = "login_failed"
	EventSignup      SessionEventType = "signup"
	EventRestore     SessionEventType = "restore"
	EventLogout      SessionEventType = "logout"
	EventExpired     SessionEventType = "expired"
	EventIdleTimeout SessionEventType = "idle_timeout"
	EventDiscarded   SessionEventType = "discarded"
)

// SessionEvent is one entry of the session audit trail.
type SessionEvent struct {
	ID         string           `json:"id"`
	Type       SessionEventType `json:"type"`
	UserID     string           `json:"user_id,omitempty"`
	Username   string           `json:"username,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Generation uint64           `json:"generation"`
	OccurredAt time.Time        `json:"occurred_at"`
}
