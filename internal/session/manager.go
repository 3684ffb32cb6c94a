// Package session owns in-memory registrar session state. Sessions never
// persist beyond the audit trail of login/logout commands; the manager is
// created at listener startup and torn down by closing all connections.
package session

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonecore/internal/domain"
	"zonecore/internal/platform/metrics"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
	"zonecore/pkg/secrets"
)

// Authentication failures are distinct values so the protocol edge can map
// them without string matching.
var (
	ErrInvalidCredential  = dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	ErrRegistrarSuspended = dErrors.New(dErrors.CodeUnauthorized, "registrar is not active")
	ErrSourceNotAllowed   = dErrors.New(dErrors.CodeUnauthorized, "source address not allowed")
	ErrNotLoggedIn        = dErrors.New(dErrors.CodeUnauthorized, "command requires an authenticated session")
	ErrAlreadyLoggedIn    = dErrors.New(dErrors.CodeCommandUse, "session is already authenticated")
	ErrSessionLimit       = dErrors.New(dErrors.CodeSessionLimit, "registrar session limit reached")
)

// Manager tracks per-connection session state behind a concurrency-safe map.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session

	registrars  store.RegistrarStore
	idleTimeout time.Duration
	maxPerReg   int

	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager builds a session manager. maxPerRegistrar of zero means
// unlimited concurrent sessions per client id.
func NewManager(registrars store.RegistrarStore, idleTimeout time.Duration, maxPerRegistrar int, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[uuid.UUID]domain.Session),
		registrars:  registrars,
		idleTimeout: idleTimeout,
		maxPerReg:   maxPerRegistrar,
		clock:       time.Now,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open issues a new unauthenticated session for a connection.
func (m *Manager) Open(sourceIP string) domain.Session {
	now := m.clock()
	s := domain.Session{
		ID:           uuid.New(),
		SourceIP:     sourceIP,
		LastActivity: now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}
	m.logger.Info("session opened", "session_id", s.ID, "source_ip", sourceIP)
	return s
}

// Get returns a snapshot of the session if it exists.
func (m *Manager) Get(id uuid.UUID) (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Login authenticates the session against the registrar record and binds it
// to the client id for the rest of its lifetime.
func (m *Manager) Login(ctx context.Context, id uuid.UUID, clientID domain.RegistrarID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotLoggedIn
	}
	if s.Authenticated {
		return ErrAlreadyLoggedIn
	}

	reg, err := m.registrars.Get(ctx, clientID)
	if err != nil {
		m.failLogin("invalid_credential")
		return ErrInvalidCredential
	}
	if reg.Status != domain.RegistrarActive {
		m.failLogin("registrar_suspended")
		return ErrRegistrarSuspended
	}
	if !sourceAllowed(s.SourceIP, reg.AllowedCIDRs) {
		m.failLogin("source_not_allowed")
		return ErrSourceNotAllowed
	}
	if err := secrets.Verify(password, reg.CredentialHash); err != nil {
		m.failLogin("invalid_credential")
		return ErrInvalidCredential
	}
	if m.maxPerReg > 0 && m.countLocked(clientID) >= m.maxPerReg {
		m.failLogin("session_limit")
		return ErrSessionLimit
	}

	now := m.clock()
	s.RegistrarID = clientID
	s.Authenticated = true
	s.LoginAt = now
	s.LastActivity = now
	m.sessions[id] = s
	m.logger.Info("login", "session_id", id, "client_id", clientID)
	return nil
}

// Touch refreshes the idle timer; called by the dispatcher on every command.
func (m *Manager) Touch(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = m.clock()
		m.sessions[id] = s
	}
}

// Logout retires the session.
func (m *Manager) Logout(id uuid.UUID) {
	m.remove(id, "logout")
}

// Close retires the session on connection loss.
func (m *Manager) Close(id uuid.UUID) {
	m.remove(id, "connection closed")
}

func (m *Manager) remove(id uuid.UUID, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
	m.logger.Info("session closed", "session_id", id, "client_id", s.RegistrarID, "reason", reason)
}

// ExpireIdle removes sessions idle past the configured timeout and returns
// them so the caller can tear down their connections.
func (m *Manager) ExpireIdle(now time.Time) []domain.Session {
	var expired []domain.Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.idleTimeout {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		if m.metrics != nil {
			m.metrics.ActiveSessions.Dec()
		}
		m.logger.Info("session expired", "session_id", s.ID, "client_id", s.RegistrarID)
	}
	return expired
}

// CountActive returns the number of authenticated sessions for a client id.
func (m *Manager) CountActive(clientID domain.RegistrarID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(clientID)
}

func (m *Manager) countLocked(clientID domain.RegistrarID) int {
	var n int
	for _, s := range m.sessions {
		if s.Authenticated && s.RegistrarID == clientID {
			n++
		}
	}
	return n
}

// CloseAll drops every session; used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[uuid.UUID]domain.Session)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Sub(float64(n))
	}
}

// Run sweeps idle sessions until the context ends. The interval should be
// shorter than the idle timeout (the wiring uses timeout/4).
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.ExpireIdle(m.clock())
		}
	}
}

func (m *Manager) failLogin(reason string) {
	if m.metrics != nil {
		m.metrics.LoginFailures.WithLabelValues(reason).Inc()
	}
}

func sourceAllowed(sourceIP string, cidrs []string) bool {
	if len(cidrs) == 0 {
		return true
	}
	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return false
	}
	for _, c := range cidrs {
		if _, ipnet, err := net.ParseCIDR(c); err == nil && ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
