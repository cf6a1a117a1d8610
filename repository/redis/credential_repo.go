package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

// ExpiryReader exposes the token exp claim so keys outlive the token by the
// grace TTL.
type ExpiryReader interface {
	ExpiresAt(token string) (time.Time, bool)
}

type credentialRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
	expiry ExpiryReader
	logger *zap.Logger
}

// NewCredentialRepository creates a Redis-backed credential store. Both keys
// are written and deleted inside one MULTI/EXEC block.
func NewCredentialRepository(client *redislib.Client, prefix string, ttl time.Duration, expiry ExpiryReader, logger *zap.Logger) repository.CredentialRepository {
	if prefix == "" {
		prefix = "storefront:credential:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &credentialRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		expiry: expiry,
		logger: logger,
	}
}

func (r *credentialRepository) Save(ctx context.Context, token string, user *domain.User) error {
	if token == "" || !user.Valid() {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	ttl := r.ttlFor(token)
	_, err = r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), token, ttl)
		pipe.Set(ctx, r.userKey(), payload, ttl)
		return nil
	})
	return err
}

func (r *credentialRepository) Load(ctx context.Context) (*domain.Credential, bool) {
	values, err := r.client.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		if !errors.Is(err, redislib.Nil) {
			r.logger.Warn("credential read failed", zap.Error(err))
		}
		return nil, false
	}
	if len(values) != 2 || (values[0] == nil && values[1] == nil) {
		return nil, false
	}

	cred := &domain.Credential{}
	if token, ok := values[0].(string); ok {
		cred.Token = token
	}
	if raw, ok := values[1].(string); ok {
		var user domain.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			cred.User = &user
		}
	}
	if !cred.Complete() {
		r.logger.Warn("discarding partial credential record")
		_ = r.Clear(ctx)
		return nil, false
	}
	return cred, true
}

func (r *credentialRepository) Clear(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Del(ctx, r.tokenKey(), r.userKey())
		return nil
	})
	return err
}

// ttlFor keeps the record for the configured grace period past the token exp,
// so a restart after expiry still finds it and reports the expiry.
func (r *credentialRepository) ttlFor(token string) time.Duration {
	if r.expiry == nil {
		return r.ttl
	}
	exp, ok := r.expiry.ExpiresAt(token)
	if !ok {
		return r.ttl
	}
	if remaining := time.Until(exp); remaining > 0 {
		return remaining + r.ttl
	}
	return r.ttl
}

func (r *credentialRepository) tokenKey() string {
	return r.prefix + "token"
}

func (r *credentialRepository) userKey() string {
	return r.prefix + "user"
}
