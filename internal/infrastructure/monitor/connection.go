package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/storefront/internal/infrastructure/buffer"
)

// Pinger is anything with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options lists the dependencies to probe. Nil entries are skipped.
type Options struct {
	Backend  Pinger
	Postgres *pgxpool.Pool
	Redis    *redislib.Client
	Buffer   *buffer.Store
	Interval time.Duration
	Logger   *zap.Logger
}

type Monitor struct {
	backend Pinger
	pg      *pgxpool.Pool
	redis   *redislib.Client
	buffer  *buffer.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		backend:  opts.Backend,
		pg:       opts.Postgres,
		redis:    opts.Redis,
		buffer:   opts.Buffer,
		interval: opts.Interval,
		stopCh:   make(chan struct{}),
		logger:   opts.Logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the audit database is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

// BackendOnline reports whether the authentication backend answered the last
// probe.
func (m *Monitor) BackendOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Backend
}

// Healthy is true when every configured dependency answered.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	return (m.backend == nil || s.Backend) &&
		(m.pg == nil || s.PostgreSQL) &&
		(m.redis == nil || s.Redis) &&
		(m.buffer == nil || s.Buffer)
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency concurrently and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	var status Status
	var g errgroup.Group

	g.Go(func() error {
		status.Backend = m.checkBackend(ctx)
		return nil
	})
	g.Go(func() error {
		status.PostgreSQL = m.checkPostgres(ctx)
		return nil
	})
	g.Go(func() error {
		status.Redis = m.checkRedis(ctx)
		return nil
	})
	g.Go(func() error {
		status.Buffer, status.BufferSize = m.checkBuffer()
		return nil
	})
	_ = g.Wait()
	status.LastCheck = time.Now()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.PostgreSQL != status.PostgreSQL {
		m.logger.Info("audit database connectivity changed", zap.Bool("online", status.PostgreSQL))
	}
	return status
}

func (m *Monitor) checkBackend(ctx context.Context) bool {
	if m.backend == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.backend.Ping(ctx) == nil
}

func (m *Monitor) checkPostgres(ctx context.Context) bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
