package transport

import (
	"encoding/json"

	"github.com/fastygo/storefront/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// Redirect tells the browser where to navigate next.
type Redirect struct {
	Location string `json:"location"`
}

// SessionResponse describes the session without exposing the token.
type SessionResponse struct {
	Authenticated        bool          `json:"authenticated"`
	Status               domain.Status `json:"status"`
	User                 *domain.User  `json:"user,omitempty"`
	IdleRemainingSeconds int           `json:"idle_remaining_seconds,omitempty"`
}

func NewSessionResponse(s domain.Session, idleRemainingSeconds int) SessionResponse {
	return SessionResponse{
		Authenticated:        s.IsAuthenticated(),
		Status:               s.Status,
		User:                 s.User,
		IdleRemainingSeconds: idleRemainingSeconds,
	}
}

// AuthResponse answers a successful login or signup.
type AuthResponse struct {
	User     *domain.User `json:"user"`
	Redirect string       `json:"redirect"`
}

// MessageResponse carries the one-shot session message, if any.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Present bool   `json:"present"`
}

// ActivityResponse reports whether the idle countdown was reset.
type ActivityResponse struct {
	Accepted bool `json:"accepted"`
}

// ViewResponse is the view model of a rendered page.
type ViewResponse struct {
	View    string            `json:"view"`
	Session SessionResponse   `json:"session"`
	Message string            `json:"message,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}
