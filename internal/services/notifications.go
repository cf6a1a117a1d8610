package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/usecase/session"
)

// NotificationSource returns the admin notification badge count.
type NotificationSource interface {
	NotificationCount(ctx context.Context, token string) (int, error)
}

// NotificationSnapshot is the last polled badge count.
type NotificationSnapshot struct {
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

// NotificationPoller pulls the admin notification count on a fixed interval
// while an admin session is active. Each session gets its own schedule;
// logging out stops it.
type NotificationPoller struct {
	source   NotificationSource
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	cron       *cron.Cron
	token      string
	generation uint64
	snapshot   NotificationSnapshot
}

func NewNotificationPoller(source NotificationSource, interval time.Duration, logger *zap.Logger) *NotificationPoller {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &NotificationPoller{
		source:   source,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("notifications"),
	}
}

// Observe follows session transitions. It runs under the session manager's
// lock, so it only swaps schedules and never blocks on the network.
func (p *NotificationPoller) Observe(t session.Transition) {
	if t.To == domain.StatusAuthenticated && t.Session.User.IsAdmin() {
		p.start(t.Session.Token, t.Generation)
		return
	}
	p.stop()
}

// Snapshot returns the cached count.
func (p *NotificationPoller) Snapshot() NotificationSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Refresh polls once for the active session.
func (p *NotificationPoller) Refresh(ctx context.Context) (NotificationSnapshot, error) {
	p.mu.Lock()
	token, generation := p.token, p.generation
	p.mu.Unlock()

	if token == "" {
		return NotificationSnapshot{}, domain.ErrNotAuthenticated
	}

	count, err := p.source.NotificationCount(ctx, token)
	if err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != generation || p.token == "" {
		return p.snapshot, domain.ErrSessionSuperseded
	}
	p.snapshot = NotificationSnapshot{Count: count, UpdatedAt: time.Now().UTC(), Active: true}
	return p.snapshot, nil
}

// Stop cancels the schedule.
func (p *NotificationPoller) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.detachLocked()
	p.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (p *NotificationPoller) start(token string, generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c := p.detachLocked(); c != nil {
		c.Stop()
	}
	p.token = token
	p.generation = generation
	p.snapshot = NotificationSnapshot{Active: true}

	c := cron.New(cron.WithSeconds())
	schedule := fmt.Sprintf("@every %ds", int(p.interval.Seconds()))
	if _, err := c.AddFunc(schedule, p.poll); err != nil {
		p.logger.Error("failed to schedule notification poll", zap.Error(err))
		return
	}
	p.cron = c
	c.Start()
	// First count without waiting a full interval.
	go p.poll()
	p.logger.Debug("notification polling started", zap.Uint64("generation", generation))
}

func (p *NotificationPoller) stop() {
	p.mu.Lock()
	c := p.detachLocked()
	p.mu.Unlock()
	if c != nil {
		c.Stop()
		p.logger.Debug("notification polling stopped")
	}
}

func (p *NotificationPoller) detachLocked() *cron.Cron {
	c := p.cron
	p.cron = nil
	p.token = ""
	p.snapshot = NotificationSnapshot{}
	return c
}

func (p *NotificationPoller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err := p.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionSuperseded), err == domain.ErrNotAuthenticated:
		// The session ended while the poll was scheduled or in flight.
	default:
		p.logger.Warn("notification poll failed", zap.Error(err))
	}
}
