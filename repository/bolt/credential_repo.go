package bolt

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

// Bucket holds the persisted credential record.
const Bucket = "credentials"

var (
	keyToken = []byte("token")
	keyUser  = []byte("user")
)

type credentialRepository struct {
	db     *bolt.DB
	bucket []byte
	logger *zap.Logger
}

// NewCredentialRepository returns a BoltDB-backed credential store. Both keys
// are written in one transaction, so readers never see half a record.
func NewCredentialRepository(db *bolt.DB, logger *zap.Logger) repository.CredentialRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &credentialRepository{db: db, bucket: []byte(Bucket), logger: logger}
}

func (r *credentialRepository) Save(_ context.Context, token string, user *domain.User) error {
	if r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if token == "" || !user.Valid() {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(r.bucket)
		if err != nil {
			return err
		}
		if err := b.Put(keyToken, []byte(token)); err != nil {
			return err
		}
		return b.Put(keyUser, payload)
	})
}

func (r *credentialRepository) Load(ctx context.Context) (*domain.Credential, bool) {
	if r.db == nil {
		return nil, false
	}

	var token, raw []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return nil
		}
		token = append([]byte(nil), b.Get(keyToken)...)
		raw = append([]byte(nil), b.Get(keyUser)...)
		return nil
	})
	if err != nil {
		r.logger.Warn("credential read failed", zap.Error(err))
		return nil, false
	}
	if len(token) == 0 && len(raw) == 0 {
		return nil, false
	}

	cred := &domain.Credential{Token: string(token)}
	if len(raw) > 0 {
		var user domain.User
		if err := json.Unmarshal(raw, &user); err == nil {
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

func (r *credentialRepository) Clear(_ context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return nil
		}
		if err := b.Delete(keyToken); err != nil {
			return err
		}
		return b.Delete(keyUser)
	})
}
