package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdown_RunsHooksInReverseOrder(t *testing.T) {
	m := New(time.Second, nil)

	var order []string
	m.RegisterStop("store", func() { order = append(order, "store") })
	m.RegisterCloser("db", closerFunc(func() error {
		order = append(order, "db")
		return nil
	}))
	m.Register("server", func(context.Context) error {
		order = append(order, "server")
		return nil
	})

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"server", "db", "store"}, order)
}

func TestShutdown_JoinsErrorsAndKeepsGoing(t *testing.T) {
	m := New(time.Second, nil)
	boom := errors.New("boom")

	ran := false
	m.RegisterStop("first", func() { ran = true })
	m.Register("failing", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestShutdown_OnlyOnce(t *testing.T) {
	m := New(time.Second, nil)
	calls := 0
	m.RegisterStop("counter", func() { calls++ })

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)

	late := false
	m.RegisterStop("late", func() { late = true })
	assert.True(t, late, "hooks registered after shutdown run immediately")
}

func TestShutdown_HooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListen_CancelStopsWatcher(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := m.Listen(context.Background())
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
