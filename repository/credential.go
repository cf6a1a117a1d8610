package repository

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

// CredentialRepository persists the token and user snapshot of the current
// session. Implementations write and clear both halves together; Load never
// returns a partial record.
type CredentialRepository interface {
	Save(ctx context.Context, token string, user *domain.User) error
	Load(ctx context.Context) (*domain.Credential, bool)
	Clear(ctx context.Context) error
}
