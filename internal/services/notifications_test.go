package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/usecase/session"
)

type countSource struct {
	mu     sync.Mutex
	counts map[string]int
	calls  int
}

func (s *countSource) NotificationCount(_ context.Context, token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	n, ok := s.counts[token]
	if !ok {
		return 0, domain.ErrNotAuthenticated
	}
	return n, nil
}

func (s *countSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func transition(to domain.Status, token string, role domain.Role, generation uint64) session.Transition {
	s := domain.Session{Status: to, Token: token}
	if token != "" {
		s.User = &domain.User{ID: "1", Username: "u", Role: role}
	}
	return session.Transition{To: to, Session: s, Generation: generation}
}

func TestNotificationPoller_PollsForAdminSession(t *testing.T) {
	source := &countSource{counts: map[string]int{"admin-token": 3}}
	p := NewNotificationPoller(source, time.Second, nil)
	t.Cleanup(func() { p.Stop(context.Background()) })

	p.Observe(transition(domain.StatusAuthenticated, "admin-token", domain.RoleAdmin, 1))

	require.Eventually(t, func() bool { return p.Snapshot().Count == 3 }, time.Second, 10*time.Millisecond)
	assert.True(t, p.Snapshot().Active)

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count)
}

func TestNotificationPoller_IgnoresNonAdmin(t *testing.T) {
	source := &countSource{counts: map[string]int{"t": 1}}
	p := NewNotificationPoller(source, time.Second, nil)

	p.Observe(transition(domain.StatusAuthenticated, "t", domain.RoleCustomer, 1))

	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.False(t, p.Snapshot().Active)
	assert.Zero(t, source.callCount())
}

func TestNotificationPoller_StopsOnLogout(t *testing.T) {
	source := &countSource{counts: map[string]int{"admin-token": 5}}
	p := NewNotificationPoller(source, time.Second, nil)

	p.Observe(transition(domain.StatusAuthenticated, "admin-token", domain.RoleAdmin, 1))
	require.Eventually(t, func() bool { return p.Snapshot().Count == 5 }, time.Second, 10*time.Millisecond)

	p.Observe(transition(domain.StatusExpired, "admin-token", domain.RoleAdmin, 2))
	assert.Equal(t, NotificationSnapshot{}, p.Snapshot())

	calls := source.callCount()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, source.callCount(), "no polls after logout")
}
