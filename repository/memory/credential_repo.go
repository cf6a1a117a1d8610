package memory

import (
	"context"
	"sync"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

// CredentialRepository keeps the credential record in process memory. It is
// the "memory" token store driver and doubles as a test fake.
type CredentialRepository struct {
	mu    sync.Mutex
	token string
	user  *domain.User
	saves int
}

var _ repository.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{}
}

func (r *CredentialRepository) Save(_ context.Context, token string, user *domain.User) error {
	if token == "" || !user.Valid() {
		return domain.ErrInvalidPayload
	}
	snapshot := *user
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
	r.user = &snapshot
	r.saves++
	return nil
}

func (r *CredentialRepository) Load(_ context.Context) (*domain.Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred := &domain.Credential{Token: r.token, User: r.user}
	if !cred.Complete() {
		r.token, r.user = "", nil
		return nil, false
	}
	snapshot := *r.user
	cred.User = &snapshot
	return cred, true
}

func (r *CredentialRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token, r.user = "", nil
	return nil
}

// Saves returns how many successful writes the store has seen.
func (r *CredentialRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Seed writes raw halves without validation, for exercising partial-record
// handling.
func (r *CredentialRepository) Seed(token string, user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token, r.user = token, user
}
