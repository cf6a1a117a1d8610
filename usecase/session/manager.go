// Package session owns the lifecycle of the storefront login session: restoring
// it at startup, login and signup, logout on demand, on token expiry and after
// inactivity.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/idle"
	appLogger "github.com/fastygo/storefront/pkg/logger"
	"github.com/fastygo/storefront/repository"
)

const (
	DefaultExpiredMessage    = "Your session has expired. Please log in again."
	DefaultInactivityMessage = "Your session has expired due to inactivity."
)

// Config holds the product decisions of the session lifecycle.
type Config struct {
	IdleTimeout       time.Duration
	ExpiredMessage    string
	InactivityMessage string
}

// DefaultConfig returns a 15 minute idle window and the stock messages.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       idle.DefaultTimeout,
		ExpiredMessage:    DefaultExpiredMessage,
		InactivityMessage: DefaultInactivityMessage,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ExpiredMessage == "" {
		c.ExpiredMessage = def.ExpiredMessage
	}
	if c.InactivityMessage == "" {
		c.InactivityMessage = def.InactivityMessage
	}
	return c
}

// Option customizes a Manager.
type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder adds an audit sink. Recorders run in the order given.
func WithRecorder(recorder EventRecorder) Option {
	return func(m *Manager) {
		if recorder != nil {
			m.recorders = append(m.recorders, recorder)
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// Manager is the single owner of the session state. Every transition bumps
// the generation; results of authentication calls started under an older
// generation are discarded.
type Manager struct {
	auth      Authenticator
	store     repository.CredentialRepository
	clock     ExpiryChecker
	recorders []EventRecorder
	observers []Observer
	logger    *zap.Logger

	mu            sync.Mutex
	cfg           Config
	session       domain.Session
	generation    uint64
	inflight      bool
	inflightEpoch uint64
	monitor       *idle.Monitor
	message       string
	closed        bool
}

func New(auth Authenticator, store repository.CredentialRepository, clock ExpiryChecker, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		auth:    auth,
		store:   store,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		session: domain.Anonymous(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore rebuilds the session from the credential store. It is meant to run
// once at startup; an expired record is torn down and leaves the expiry
// message for the login view.
func (m *Manager) Restore(ctx context.Context) domain.Session {
	var events []domain.SessionEvent

	m.mu.Lock()
	if m.closed || m.session.Status == domain.StatusAuthenticated {
		current := m.snapshotLocked()
		m.mu.Unlock()
		return current
	}

	cred, ok := m.store.Load(ctx)
	switch {
	case !ok:
		m.logger.Info("no stored session")
	case m.clock.IsExpired(cred.Token):
		m.logger.Info("stored session expired", zap.String("user_id", cred.User.ID))
		m.teardownLocked(ctx, m.cfg.ExpiredMessage)
		events = append(events, m.eventLocked(domain.EventExpired, cred.User, m.cfg.ExpiredMessage))
	default:
		m.authenticateLocked(cred.Token, cred.User)
		events = append(events, m.eventLocked(domain.EventRestore, cred.User, ""))
		m.logger.Info("session restored", zap.String("user_id", cred.User.ID), zap.Uint64("generation", m.generation))
	}
	current := m.snapshotLocked()
	m.mu.Unlock()

	m.record(ctx, events)
	return current
}

// Login authenticates against the backend and, unless the session moved on
// while the call was in flight, persists and activates the new session.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username and password are required")
	}

	epoch, err := m.begin()
	if err != nil {
		return nil, err
	}
	res, err := m.auth.Login(ctx, creds)
	return m.complete(ctx, epoch, domain.EventLogin, creds.Username, res, err)
}

// Signup registers a new account and activates it like Login does.
func (m *Manager) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username, email and password are required")
	}

	epoch, err := m.begin()
	if err != nil {
		return nil, err
	}
	res, err := m.auth.Signup(ctx, req)
	return m.complete(ctx, epoch, domain.EventSignup, req.Username, res, err)
}

// Logout clears the store and the session together. A non-empty reason is
// kept as the one-shot message for the next login view. Logging out an
// anonymous session only invalidates in-flight authentication.
func (m *Manager) Logout(ctx context.Context, reason string) {
	m.mu.Lock()
	if m.session.Status != domain.StatusAuthenticated {
		m.generation++
		m.mu.Unlock()
		return
	}
	user := m.session.User
	m.teardownLocked(ctx, reason)
	event := m.eventLocked(domain.EventLogout, user, reason)
	m.mu.Unlock()

	m.logger.Info("session logged out", zap.String("user_id", user.ID), zap.String("reason", reason))
	m.record(ctx, []domain.SessionEvent{event})
}

// Check returns the current session after tearing it down if its token has
// expired. Route guards call it on every protected navigation.
func (m *Manager) Check(ctx context.Context) domain.Session {
	m.mu.Lock()
	if m.session.Status != domain.StatusAuthenticated || !m.clock.IsExpired(m.session.Token) {
		current := m.snapshotLocked()
		m.mu.Unlock()
		return current
	}
	user := m.session.User
	m.teardownLocked(ctx, m.cfg.ExpiredMessage)
	event := m.eventLocked(domain.EventExpired, user, m.cfg.ExpiredMessage)
	current := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("session token expired", zap.String("user_id", user.ID))
	m.record(ctx, []domain.SessionEvent{event})
	return current
}

// Current returns a snapshot of the session.
func (m *Manager) Current() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Generation returns the transition counter.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// ConsumeMessage returns the pending one-shot message and clears it.
func (m *Manager) ConsumeMessage() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.message
	m.message = ""
	return msg, msg != ""
}

// RecordActivity forwards a user activity signal to the idle monitor of the
// active session.
func (m *Manager) RecordActivity(signal idle.Signal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.monitor == nil {
		return false
	}
	return m.monitor.Signal(signal)
}

// IdleRemaining returns the time left in the current idle window.
func (m *Manager) IdleRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.monitor == nil {
		return 0
	}
	return m.monitor.Remaining()
}

// SetIdleTimeout changes the idle window; an active countdown restarts with
// the new duration.
func (m *Manager) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.IdleTimeout = d
	if m.monitor != nil {
		m.monitor.SetTimeout(d)
	}
}

// RequestPasswordReset never fails; transport problems become an
// unsuccessful Result.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) domain.Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Result{Success: false, Message: "Email is required."}
	}
	msg, err := m.auth.ForgotPassword(ctx, email)
	if err != nil {
		appLogger.WithRequestID(ctx, m.logger).Warn("password reset request failed", zap.Error(err))
		return domain.Result{Success: false, Message: domain.MessageOf(err, "Unable to send reset email. Please try again later.")}
	}
	if msg == "" {
		msg = "If an account exists for that email, a reset link has been sent."
	}
	return domain.Result{Success: true, Message: msg}
}

// ResetPassword never fails; transport problems become an unsuccessful Result.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) domain.Result {
	if token == "" || newPassword == "" {
		return domain.Result{Success: false, Message: "Reset token and new password are required."}
	}
	msg, err := m.auth.ResetPassword(ctx, token, newPassword)
	if err != nil {
		appLogger.WithRequestID(ctx, m.logger).Warn("password reset failed", zap.Error(err))
		return domain.Result{Success: false, Message: domain.MessageOf(err, "Unable to reset password. Please try again later.")}
	}
	if msg == "" {
		msg = "Your password has been reset."
	}
	return domain.Result{Success: true, Message: msg}
}

// Close stops the idle monitor and rejects further authentication. The
// persisted record is kept so the next start can restore it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.generation++
	if m.monitor != nil {
		m.monitor.Stop()
		m.monitor = nil
	}
}

// begin reserves the in-flight slot of the current generation.
func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, domain.NewError(domain.ErrCodeUnavailable, "session manager closed")
	}
	if m.inflight && m.inflightEpoch == m.generation {
		return 0, domain.ErrAuthInProgress
	}
	m.inflight = true
	m.inflightEpoch = m.generation
	return m.generation, nil
}

func (m *Manager) complete(ctx context.Context, epoch uint64, kind domain.SessionEventType, username string, res *domain.AuthResult, authErr error) (*domain.User, error) {
	log := appLogger.WithRequestID(ctx, m.logger)

	m.mu.Lock()
	if m.inflight && m.inflightEpoch == epoch {
		m.inflight = false
	}

	if authErr != nil {
		event := m.eventLocked(domain.EventLoginFailed, &domain.User{Username: username}, string(kind))
		m.mu.Unlock()
		log.Info("authentication rejected", zap.String("kind", string(kind)), zap.Error(authErr))
		m.record(ctx, []domain.SessionEvent{event})
		return nil, authErr
	}

	user := res.User.Normalize()
	if m.generation != epoch || m.closed {
		event := m.eventLocked(domain.EventDiscarded, user, string(kind))
		m.mu.Unlock()
		log.Info("discarding stale authentication result", zap.String("kind", string(kind)), zap.Uint64("started", epoch))
		m.record(ctx, []domain.SessionEvent{event})
		return nil, domain.ErrSessionSuperseded
	}
	if !user.Valid() {
		event := m.eventLocked(domain.EventLoginFailed, &domain.User{Username: username}, string(kind))
		m.mu.Unlock()
		log.Warn("authentication service returned an unusable profile", zap.String("kind", string(kind)))
		m.record(ctx, []domain.SessionEvent{event})
		return nil, domain.NewError(domain.ErrCodeUnavailable, "unexpected response from authentication service")
	}
	if err := m.store.Save(ctx, res.Token, user); err != nil {
		m.mu.Unlock()
		log.Error("failed to persist session", zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInternal, "could not persist session", err)
	}

	m.message = ""
	m.authenticateLocked(res.Token, user)
	event := m.eventLocked(kind, user, "")
	generation := m.generation
	m.mu.Unlock()

	log.Info("session authenticated",
		zap.String("kind", string(kind)),
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Uint64("generation", generation))
	m.record(ctx, []domain.SessionEvent{event})

	out := *user
	return &out, nil
}

// authenticateLocked replaces the session and arms a fresh idle monitor bound
// to the new generation.
func (m *Manager) authenticateLocked(token string, user *domain.User) {
	if m.monitor != nil {
		m.monitor.Stop()
		m.monitor = nil
	}
	from := m.session.Status
	m.generation++
	generation := m.generation

	snapshot := *user
	m.session = domain.Session{Token: token, User: &snapshot, Status: domain.StatusAuthenticated}

	m.monitor = idle.New(m.cfg.IdleTimeout, func() { m.expireIdle(generation) })
	m.monitor.Start()

	m.notifyLocked(from, domain.StatusAuthenticated)
}

// teardownLocked stops the idle monitor, clears the store and resets the
// session in one step under the lock.
func (m *Manager) teardownLocked(ctx context.Context, reason string) {
	if m.monitor != nil {
		m.monitor.Stop()
		m.monitor = nil
	}
	from := m.session.Status
	m.generation++

	m.session.Status = domain.StatusExpired
	m.notifyLocked(from, domain.StatusExpired)

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear stored session", zap.Error(err))
	}
	m.session = domain.Anonymous()
	if reason != "" {
		m.message = reason
	}
	m.notifyLocked(domain.StatusExpired, domain.StatusAnonymous)
}

// expireIdle runs on the idle monitor's timer. A monitor from an older
// generation has nothing left to log out.
func (m *Manager) expireIdle(generation uint64) {
	ctx := context.Background()

	m.mu.Lock()
	if m.generation != generation || m.session.Status != domain.StatusAuthenticated {
		m.mu.Unlock()
		return
	}
	user := m.session.User
	reason := m.cfg.InactivityMessage
	m.teardownLocked(ctx, reason)
	event := m.eventLocked(domain.EventIdleTimeout, user, reason)
	m.mu.Unlock()

	m.logger.Info("session idle timeout", zap.String("user_id", user.ID))
	m.record(ctx, []domain.SessionEvent{event})
}

func (m *Manager) notifyLocked(from, to domain.Status) {
	t := Transition{From: from, To: to, Session: m.snapshotLocked(), Generation: m.generation}
	for _, observer := range m.observers {
		observer(t)
	}
}

func (m *Manager) snapshotLocked() domain.Session {
	s := m.session
	if s.User != nil {
		user := *s.User
		s.User = &user
	}
	return s
}

func (m *Manager) eventLocked(kind domain.SessionEventType, user *domain.User, reason string) domain.SessionEvent {
	event := domain.SessionEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		Reason:     reason,
		Generation: m.generation,
		OccurredAt: time.Now().UTC(),
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	return event
}

func (m *Manager) record(ctx context.Context, events []domain.SessionEvent) {
	for _, event := range events {
		for _, recorder := range m.recorders {
			if err := recorder.Record(ctx, event); err != nil {
				m.logger.Warn("failed to record session event", zap.String("type", string(event.Type)), zap.Error(err))
			}
		}
	}
}
