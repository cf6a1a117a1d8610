package repository

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

type SessionEventFilter struct {
	UserID string
	Type   string
	Limit  int
	Offset int
}

type SessionEventRepository interface {
	Append(ctx context.Context, event domain.SessionEvent) error
	List(ctx context.Context, filter SessionEventFilter) ([]domain.SessionEvent, error)
}
