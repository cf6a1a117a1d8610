// Package idle fires a callback after a window of user inactivity.
package idle

import (
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is the inactivity window used when none is configured.
const DefaultTimeout = 15 * time.Minute

// Signal is a user activity event reported by the presentation layer.
type Signal int

const (
	SignalUnknown Signal = iota
	PointerMove
	PointerDown
	KeyDown
	TouchStart
)

func (s Signal) String() string {
	switch s {
	case PointerMove:
		return "pointer_move"
	case PointerDown:
		return "pointer_down"
	case KeyDown:
		return "key_down"
	case TouchStart:
		return "touch_start"
	default:
		return "unknown"
	}
}

// Qualifying reports whether the signal resets the idle deadline.
func (s Signal) Qualifying() bool {
	return s >= PointerMove && s <= TouchStart
}

// ParseSignal maps DOM event names onto signals.
func ParseSignal(name string) (Signal, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mousemove", "pointermove", "pointer_move":
		return PointerMove, true
	case "mousedown", "pointerdown", "pointer_down":
		return PointerDown, true
	case "keydown", "keypress", "key_down":
		return KeyDown, true
	case "touchstart", "touch_start":
		return TouchStart, true
	default:
		return SignalUnknown, false
	}
}

// Monitor runs a single countdown. Every qualifying signal replaces the
// countdown; when one elapses, onIdle runs once and a new countdown starts
// until Stop is called.
type Monitor struct {
	mu       sync.Mutex
	timeout  time.Duration
	onIdle   func()
	now      func() time.Time
	timer    *time.Timer
	seq      uint64
	deadline time.Time
	running  bool
	stopped  bool
}

// New builds a monitor. It does nothing until Start.
func New(timeout time.Duration, onIdle func()) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if onIdle == nil {
		onIdle = func() {}
	}
	return &Monitor{
		timeout: timeout,
		onIdle:  onIdle,
		now:     time.Now,
	}
}

// Start arms the first countdown. Calling it on a running or stopped monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.stopped {
		return
	}
	m.running = true
	m.armLocked()
}

// Signal records user activity. It returns false when the signal does not
// qualify or the monitor is not running.
func (m *Monitor) Signal(s Signal) bool {
	if !s.Qualifying() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.stopped {
		return false
	}
	m.armLocked()
	return true
}

// SetTimeout changes the window. A running monitor restarts its countdown
// with the new duration.
func (m *Monitor) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
	if m.running && !m.stopped {
		m.armLocked()
	}
}

// Stop cancels the pending countdown. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.running = false
	m.seq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.deadline = time.Time{}
}

// Deadline returns when the current countdown elapses, or the zero time when
// the monitor is not running.
func (m *Monitor) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

func (m *Monitor) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Remaining returns the time left before the current deadline.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deadline.IsZero() {
		return 0
	}
	if d := m.deadline.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

func (m *Monitor) armLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.seq++
	seq := m.seq
	m.deadline = m.now().Add(m.timeout)
	m.timer = time.AfterFunc(m.timeout, func() { m.fire(seq) })
}

// fire runs on the timer goroutine. A timer that was superseded after it
// started firing sees a newer seq and returns.
func (m *Monitor) fire(seq uint64) {
	m.mu.Lock()
	if m.stopped || seq != m.seq {
		m.mu.Unlock()
		return
	}
	m.armLocked()
	onIdle := m.onIdle
	m.mu.Unlock()

	onIdle()
}
