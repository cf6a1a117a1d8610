package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/infrastructure/buffer"
	"github.com/fastygo/storefront/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the audit buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// Retention bounds how long an event may wait in the buffer.
	Retention time.Duration
}

// AuditProcessor writes session events to Postgres, parking them in BoltDB
// while the database is unreachable and draining the backlog on a schedule.
type AuditProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	events  repository.SessionEventRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewAuditProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	events repository.SessionEventRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *AuditProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ap := &AuditProcessor{
		store:   store,
		monitor: monitor,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ap.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := ap.Drain(ctx); err != nil {
			ap.logger.Error("audit drain failed", zap.Error(err))
		}
	})
	_, _ = ap.cron.AddFunc("@hourly", func() {
		removed, err := ap.store.Cleanup(time.Now().Add(-ap.cfg.Retention))
		if err != nil {
			ap.logger.Warn("audit buffer cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			ap.logger.Warn("dropped stale audit events", zap.Int("count", removed))
		}
	})

	return ap
}

// Start launches the cron scheduler.
func (ap *AuditProcessor) Start() {
	if ap == nil || ap.cron == nil {
		return
	}
	ap.cron.Start()
	ap.logger.Info("audit processor started")
}

// Stop gracefully stops the scheduler.
func (ap *AuditProcessor) Stop(ctx context.Context) {
	if ap == nil || ap.cron == nil {
		return
	}
	stopCtx := ap.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ap.logger.Info("audit processor stopped")
}

// Drain writes buffered events in order. It does nothing while the database
// is offline.
func (ap *AuditProcessor) Drain(ctx context.Context) error {
	if ap == nil || ap.store == nil {
		return nil
	}
	if ap.monitor != nil && !ap.monitor.IsOnline() {
		ap.logger.Debug("skipping audit drain (offline)")
		return nil
	}

	items, err := ap.store.GetBatch(ap.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		event, err := item.Decode()
		if err != nil {
			ap.logger.Warn("dropping undecodable audit item", zap.String("item_id", item.ID), zap.Error(err))
			_ = ap.store.Remove(item)
			continue
		}

		if err := ap.events.Append(ctx, event); err != nil {
			ap.logger.Error("failed to write audit event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err))

			if item.Retries+1 >= ap.cfg.MaxRetries {
				ap.logger.Warn("dropping audit event (max retries reached)", zap.String("event_id", event.ID))
				_ = ap.store.Remove(item)
				continue
			}
			if err := ap.store.Requeue(item); err != nil {
				ap.logger.Error("failed to requeue audit event", zap.Error(err))
			}
			continue
		}

		if err := ap.store.Remove(item); err != nil {
			ap.logger.Warn("failed to purge written audit event", zap.Error(err))
		}
	}
	return nil
}

// Persist writes the event immediately when the database is online and falls
// back to the buffer otherwise.
func (ap *AuditProcessor) Persist(ctx context.Context, event domain.SessionEvent) error {
	if ap == nil || ap.store == nil {
		return fmt.Errorf("audit processor not configured")
	}

	if ap.monitor == nil || ap.monitor.IsOnline() {
		err := ap.events.Append(ctx, event)
		if err == nil {
			return nil
		}
		ap.logger.Warn("immediate audit write failed, buffering", zap.Error(err))
	}

	item, err := buffer.NewItem(event)
	if err != nil {
		return err
	}
	return ap.store.Enqueue(item)
}

// Size returns the number of buffered events.
func (ap *AuditProcessor) Size() int {
	if ap == nil || ap.store == nil {
		return 0
	}
	size, err := ap.store.Size()
	if err != nil {
		return 0
	}
	return size
}
