package session

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

// Authenticator is the backend collaborator behind login, signup and the
// password reset flows.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
}

// ExpiryChecker decides whether a persisted token is still usable.
type ExpiryChecker interface {
	IsExpired(token string) bool
}

// EventRecorder receives the audit trail of session transitions.
type EventRecorder interface {
	Record(ctx context.Context, event domain.SessionEvent) error
}

// Transition describes one status change of the session.
type Transition struct {
	From       domain.Status
	To         domain.Status
	Session    domain.Session
	Generation uint64
}

// Observer is notified of every transition, in order, while the manager
// holds its lock. Observers must not call back into the Manager.
type Observer func(Transition)
