package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	appLogger "github.com/fastygo/storefront/pkg/logger"
	"github.com/fastygo/storefront/usecase/session"
)

// EventSink persists session events beyond the log.
type EventSink interface {
	Persist(ctx context.Context, event domain.SessionEvent) error
}

// AuditRecorder logs every session event and forwards it to the sink when
// one is configured.
type AuditRecorder struct {
	logger *zap.Logger
	sink   EventSink
}

func NewAuditRecorder(logger *zap.Logger, sink EventSink) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{logger: logger.Named("audit"), sink: sink}
}

func (r *AuditRecorder) Record(ctx context.Context, event domain.SessionEvent) error {
	if event.ID == "" || event.Type == "" {
		return domain.ErrInvalidPayload
	}
	appLogger.WithRequestID(ctx, r.logger).Info("session event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.String("username", event.Username),
		zap.String("reason", event.Reason),
		zap.Uint64("generation", event.Generation),
		zap.Time("occurred_at", event.OccurredAt))

	if r.sink == nil {
		return nil
	}
	return r.sink.Persist(ctx, event)
}

var _ session.EventRecorder = (*AuditRecorder)(nil)
