package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

type sessionEventRepository struct {
	pool *pgxpool.Pool
}

// NewSessionEventRepository returns a Postgres-backed audit trail.
func NewSessionEventRepository(pool *pgxpool.Pool) repository.SessionEventRepository {
	return &sessionEventRepository{pool: pool}
}

// Append is idempotent on the event ID, so a buffered event replayed after a
// partial failure is written once.
func (r *sessionEventRepository) Append(ctx context.Context, event domain.SessionEvent) error {
	if event.ID == "" || event.Type == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO session_events (id, type, user_id, username, reason, generation, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		string(event.Type),
		nullString(event.UserID),
		nullString(event.Username),
		nullString(event.Reason),
		int64(event.Generation),
		nullTime(event.OccurredAt),
	)
	return err
}

func (r *sessionEventRepository) List(ctx context.Context, filter repository.SessionEventFilter) ([]domain.SessionEvent, error) {
	const query = `
	SELECT id, type, COALESCE(user_id, ''), COALESCE(username, ''), COALESCE(reason, ''), generation, occurred_at
	FROM session_events
	WHERE ($1 = '' OR user_id = $1)
	  AND ($2 = '' OR type = $2)
	ORDER BY occurred_at DESC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, filter.UserID, filter.Type, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SessionEvent
	for rows.Next() {
		var (
			event      domain.SessionEvent
			kind       string
			generation int64
			occurredAt time.Time
		)
		if err := rows.Scan(
			&event.ID,
			&kind,
			&event.UserID,
			&event.Username,
			&event.Reason,
			&generation,
			&occurredAt,
		); err != nil {
			return nil, err
		}
		event.Type = domain.SessionEventType(kind)
		event.Generation = uint64(generation)
		event.OccurredAt = occurredAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
