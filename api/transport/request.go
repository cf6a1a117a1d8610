package transport

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogoutRequest carries an optional message for the next login view.
type LogoutRequest struct {
	Reason string `json:"reason"`
}

// ActivityRequest reports a browser activity event (mousemove, keydown,
// touchstart, ...).
type ActivityRequest struct {
	Event string `json:"event"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}
